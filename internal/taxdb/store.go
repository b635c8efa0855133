package taxdb

import "github.com/starford/taxonid/internal/taxonomy"

// Verify *DB satisfies taxonomy.Store at compile time.
var _ taxonomy.Store = (*DB)(nil)
