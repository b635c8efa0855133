// Package testutil provides shared test helpers for setting up taxonomy databases.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/taxonid/internal/models"
	"github.com/starford/taxonid/internal/taxdb"
)

// Fixture returns a small tree covering both prokaryotic domains, a
// eukaryotic homonym (Bacillus), a genus name shared by two prokaryotic
// taxa (Ambiguella) and a synonym.
func Fixture() []models.Node {
	return []models.Node{
		{TaxID: 1, Parent: 1, Name: "root", Rank: "no rank"},
		{TaxID: 131567, Parent: 1, Name: "cellular organisms"},
		{TaxID: 2, Parent: 131567, Name: "Bacteria", Rank: "superkingdom"},
		{TaxID: 2157, Parent: 131567, Name: "Archaea", Rank: "superkingdom"},
		{TaxID: 2759, Parent: 131567, Name: "Eukaryota", Rank: "superkingdom"},
		{TaxID: 1239, Parent: 2, Name: "Bacillota", Rank: "phylum"},
		{TaxID: 33958, Parent: 1239, Name: "Lactobacillaceae", Rank: "family"},
		{TaxID: 1570, Parent: 33958, Name: "Lactobacillus", Rank: "genus", Synonyms: []string{"Lactobacillus sensu lato"}},
		{TaxID: 1386, Parent: 1239, Name: "Bacillus", Rank: "genus"},
		{TaxID: 55087, Parent: 2759, Name: "Bacillus", Rank: "genus"},
		{TaxID: 28890, Parent: 2157, Name: "Euryarchaeota", Rank: "phylum"},
		{TaxID: 183963, Parent: 28890, Name: "Halobacteria", Rank: "class"},
		{TaxID: 90001, Parent: 1239, Name: "Ambiguella", Rank: "genus"},
		{TaxID: 90002, Parent: 28890, Name: "Ambiguella", Rank: "genus"},
	}
}

// Merged returns the retired taxids of the fixture.
func Merged() map[models.TaxID]models.TaxID {
	return map[models.TaxID]models.TaxID{1578: 1570}
}

// TestDB creates a temporary taxonomy database seeded with Fixture. It is
// closed automatically.
func TestDB(t *testing.T) *taxdb.DB {
	t.Helper()
	return TestDBAt(t, filepath.Join(t.TempDir(), "taxa.sqlite"))
}

// TestDBAt is TestDB with an explicit database path.
func TestDBAt(t *testing.T, path string) *taxdb.DB {
	t.Helper()
	db, err := taxdb.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Seed(context.Background(), Fixture(), Merged()); err != nil {
		t.Fatal(err)
	}
	return db
}
