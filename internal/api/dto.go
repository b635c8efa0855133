package api

import (
	"github.com/starford/taxonid/internal/models"
)

// Resolution is the response of a name resolution (aliased from the domain layer).
type Resolution = models.Resolution

// Query is a single name + rank pair (aliased from the domain layer).
type Query = models.Query

// ResolveBatchRequest is the request body for resolving many names at once.
type ResolveBatchRequest struct {
	Queries []Query `json:"queries" validate:"required"`
}

// ResolveBatchResponse lists resolutions in request order.
type ResolveBatchResponse struct {
	Results []Resolution `json:"results" validate:"required"`
}

// RankResponse is the normalized rank of a taxon. Rank is empty when unknown.
type RankResponse struct {
	TaxID models.TaxID `json:"taxid" example:"2" validate:"required"`
	Rank  string       `json:"rank" example:"domain"`
}

// ProkaryoteResponse reports whether a taxon belongs to Bacteria or Archaea.
type ProkaryoteResponse struct {
	TaxID      models.TaxID `json:"taxid" example:"1570" validate:"required"`
	Prokaryote bool         `json:"prokaryote" example:"true"`
}

// AscendantsResponse is the node-to-root chain of a taxon.
type AscendantsResponse struct {
	TaxID      models.TaxID   `json:"taxid" example:"1570" validate:"required"`
	Ascendants []models.TaxID `json:"ascendants" validate:"required"`
	Names      []string       `json:"names,omitempty" example:"1570:Lactobacillus,2:Bacteria"`
}

// NamesRequest is the request body for labelling taxids.
type NamesRequest struct {
	TaxIDs []models.TaxID `json:"taxids" validate:"required"`
}

// NamesResponse holds "taxid:name" labels in request order.
type NamesResponse struct {
	Names []string `json:"names" validate:"required"`
}
