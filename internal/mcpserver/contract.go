package mcpserver

// ResolutionPolicy describes how names are resolved so that LLM consumers can
// interpret not_found and ambiguous outcomes.
const ResolutionPolicy = `# taxonid Resolution Policy

Names are resolved against the NCBI taxonomy, restricted to prokaryotes.

## Resolving a name

1. Every taxon whose scientific name matches (case-insensitive) is a candidate.
   When no scientific name matches, synonyms are tried.
2. Candidates outside Bacteria (taxid 2) and Archaea (taxid 2157) are dropped.
3. Candidates whose rank differs from the requested rank are dropped.
   The rank "superkingdom" is always reported as "domain": ask for
   ` + "`" + `domain` + "`" + `, never ` + "`" + `superkingdom` + "`" + `.
4. The outcome depends on how many candidates remain:
   - one: ` + "`" + `resolved` + "`" + `, with its taxid
   - none: ` + "`" + `not_found` + "`" + `
   - several: ` + "`" + `ambiguous` + "`" + `, with every candidate taxid

A name is never guessed. Ambiguous names need disambiguation by the caller,
for example by checking ` + "`" + `get_ascendants` + "`" + ` of each candidate.

## Ancestor chains

- ` + "`" + `get_ascendants` + "`" + ` lists taxids from the taxon itself up to the root (taxid 1).
- An unknown taxid yields the chain ` + "`" + `[0]` + "`" + `. Taxid 0 is the generic
  "Prokaryote" placeholder and has no entry in the taxonomy.
- Retired taxids that NCBI merged into another node resolve through the node
  they were merged into.

## Labels

` + "`" + `get_names` + "`" + ` renders each taxid as ` + "`" + `taxid:name` + "`" + `, for example
` + "`" + `1570:Lactobacillus` + "`" + `. An unknown taxid renders with an empty name
(` + "`" + `424242:` + "`" + `), and the chain ` + "`" + `[0]` + "`" + ` renders as ` + "`" + `Prokaryote` + "`" + `.
`
