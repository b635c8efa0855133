// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes taxonid lookups for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/taxonid/internal/apperr"
	"github.com/starford/taxonid/internal/lookup"
	"github.com/starford/taxonid/internal/models"
)

const policyURI = "taxonid://resolution-policy"

// Server wraps the MCP server with taxonid tools.
type Server struct {
	mcp *server.MCPServer
	svc *lookup.Service
}

// New creates a new MCP server with all taxonid tools registered.
func New(svc *lookup.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"taxonid",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_taxid",
		mcp.WithDescription("Resolve a bacterial or archaeal taxon name at a rank to its NCBI taxid. "+
			"The outcome is resolved, not_found or ambiguous; read the "+policyURI+" resource for the rules."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Scientific name, e.g. Lactobacillus")),
		mcp.WithString("rank", mcp.Required(), mcp.Description("Rank, e.g. genus, phylum or domain")),
	), s.resolveTaxID)

	s.mcp.AddTool(mcp.NewTool("get_rank",
		mcp.WithDescription("Return the rank of a taxid. superkingdom is reported as domain; unknown taxids have an empty rank."),
		mcp.WithNumber("taxid", mcp.Required(), mcp.Description("NCBI taxid")),
	), s.getRank)

	s.mcp.AddTool(mcp.NewTool("is_prokaryote",
		mcp.WithDescription("Report whether a taxid belongs to Bacteria or Archaea."),
		mcp.WithNumber("taxid", mcp.Required(), mcp.Description("NCBI taxid")),
	), s.isProkaryote)

	s.mcp.AddTool(mcp.NewTool("get_ascendants",
		mcp.WithDescription("List the taxids from a taxon up to the root. Unknown taxids yield [0]."),
		mcp.WithNumber("taxid", mcp.Required(), mcp.Description("NCBI taxid")),
		mcp.WithBoolean("names", mcp.Description("Also return taxid:name labels")),
	), s.getAscendants)

	s.mcp.AddTool(mcp.NewTool("get_names",
		mcp.WithDescription("Label taxids as taxid:name."),
		mcp.WithArray("taxids", mcp.Required(), mcp.Description("NCBI taxids"),
			mcp.Items(map[string]any{"type": "integer"})),
	), s.getNames)

	s.mcp.AddResource(
		mcp.NewResource(policyURI, "Resolution Policy",
			mcp.WithResourceDescription("How taxon names are matched, filtered and reported."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPolicyResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toTaxID converts a JSON number argument to a taxid.
func toTaxID(v float64) (models.TaxID, error) {
	if v < 0 || v != math.Trunc(v) || v >= 1<<63 {
		return 0, fmt.Errorf("taxid must be a non-negative integer, got %v", v)
	}
	return models.TaxID(v), nil
}

func requireTaxID(req mcp.CallToolRequest) (models.TaxID, error) {
	v, err := req.RequireFloat("taxid")
	if err != nil {
		return 0, err
	}
	return toTaxID(v)
}

func (s *Server) resolveTaxID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rank, err := req.RequireString("rank")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Resolve(ctx, models.Query{Name: name, Rank: rank})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getRank(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireTaxID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rank, err := s.svc.Rank(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"taxid": id, "rank": rank})
}

func (s *Server) isProkaryote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireTaxID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.svc.IsProkaryote(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown taxid: %d", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"taxid": id, "prokaryote": ok})
}

func (s *Server) getAscendants(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireTaxID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	l, err := s.svc.Ascendants(ctx, id, req.GetBool("names", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(l)
}

func (s *Server) getNames(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["taxids"].([]any)
	if !ok {
		return mcp.NewToolResultError("required argument \"taxids\" must be an array of integers"), nil
	}
	ids := make([]models.TaxID, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("taxids: %v is not a number", v)), nil
		}
		id, err := toTaxID(f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ids = append(ids, id)
	}
	names, err := s.svc.Names(ctx, ids)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"names": names})
}

func (s *Server) readPolicyResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      policyURI,
			MIMEType: "text/markdown",
			Text:     ResolutionPolicy,
		},
	}, nil
}
