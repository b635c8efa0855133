package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/starford/taxonid/internal/apperr"
	"github.com/starford/taxonid/internal/mcpserver"
	"github.com/starford/taxonid/internal/models"
)

// RunMCP serves the MCP tools over stdio. Logs go to stderr so stdout
// carries only protocol messages.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	db, err := app.openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := mcpserver.New(app.newService(db, logger), app.version)
	logger.Info("MCP server starting on stdio", slog.String("taxonomy_db", db.Path()))
	return srv.ServeStdio()
}

// RunPrepare downloads and unpacks the reference data.
func RunPrepare(ctx context.Context, force bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	return app.preparer(app.newLogger(os.Stderr)).Prepare(ctx, force)
}

// RunResolve resolves queries and writes one tab-separated line per query:
// name, rank, taxid, outcome and, for ambiguous names, the candidates.
// Unresolved queries are reported after every line is written.
func RunResolve(ctx context.Context, queries []models.Query, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	db, err := app.openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := app.newService(db, logger).ResolveBatch(ctx, queries)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(app.output, 0, 4, 2, ' ', 0)
	unresolved := 0
	for _, res := range results {
		taxid := ""
		if res.Resolved() {
			taxid = strconv.FormatInt(int64(res.TaxID), 10)
		} else {
			unresolved++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", res.Name, res.Rank, taxid, res.Outcome, joinIDs(res.Candidates))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if unresolved > 0 {
		return fmt.Errorf("%d of %d names unresolved: %w", unresolved, len(results), apperr.ErrNotFound)
	}
	return nil
}

// RunAscendants writes the chain from id to the root, one entry per line.
func RunAscendants(ctx context.Context, id models.TaxID, withNames bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	db, err := app.openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	l, err := app.newService(db, logger).Ascendants(ctx, id, withNames)
	if err != nil {
		return err
	}
	if withNames {
		_, err = fmt.Fprintln(app.output, strings.Join(l.Names, "\n"))
		return err
	}
	_, err = fmt.Fprintln(app.output, strings.ReplaceAll(joinIDs(l.TaxIDs), ",", "\n"))
	return err
}

// RunRank writes the normalized rank of id; unknown ids print an empty line.
func RunRank(ctx context.Context, id models.TaxID, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	db, err := app.openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	rank, err := app.newService(db, logger).Rank(ctx, id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.output, rank)
	return err
}

func joinIDs(ids []models.TaxID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, ",")
}
