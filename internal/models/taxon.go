// Package models defines the domain types for taxonid.
package models

// TaxID identifies a node in the taxonomy tree.
type TaxID int64

// Fixed nodes of the tree. ProkaryoteID has no store entry.
const (
	ProkaryoteID TaxID = 0
	BacteriaID   TaxID = 2
	ArchaeaID    TaxID = 2157
)

// ProkaryoteLabel is the display name of ProkaryoteID.
const ProkaryoteLabel = "Prokaryote"

// Ranks with special handling.
const (
	RankSuperkingdom = "superkingdom"
	RankDomain       = "domain"
)

// Outcome is the result class of a name resolution.
type Outcome string

const (
	OutcomeResolved  Outcome = "resolved"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeAmbiguous Outcome = "ambiguous"
)

// Query is a single name + rank resolution request.
type Query struct {
	Name string `json:"name" yaml:"name"`
	Rank string `json:"rank" yaml:"rank"`
}

// Resolution is the outcome of resolving a Query.
// TaxID is only meaningful when Outcome is OutcomeResolved.
type Resolution struct {
	Name       string  `json:"name"`
	Rank       string  `json:"rank"`
	TaxID      TaxID   `json:"taxid,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Candidates []TaxID `json:"candidates,omitempty"`
}

// Resolved reports whether the query mapped to exactly one taxon.
func (r Resolution) Resolved() bool {
	return r.Outcome == OutcomeResolved
}

// Node is one row of a taxonomy tree, used when loading small datasets.
type Node struct {
	TaxID    TaxID
	Parent   TaxID
	Name     string
	Rank     string
	Synonyms []string
}
