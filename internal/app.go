package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/taxonid/internal/lookup"
	"github.com/starford/taxonid/internal/refdata"
	"github.com/starford/taxonid/internal/taxdb"
	"github.com/starford/taxonid/internal/taxonomy"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errors.New("config is required")
	}
	if app.output == nil {
		app.output = os.Stdout
	}
	return app, nil
}

// newLogger builds the JSON logger. def is used unless WithLogOutput was given.
func (a *application) newLogger(def io.Writer) *slog.Logger {
	out := a.logOutput
	if out == nil {
		out = def
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

func (a *application) preparer(logger *slog.Logger) *refdata.Preparer {
	return refdata.New(a.config.Reference.Refdata(), logger, a.refOpts...)
}

// openStore makes sure the taxonomy database exists, fetching it when a URL
// is configured, and opens it.
func (a *application) openStore(ctx context.Context, logger *slog.Logger) (*taxdb.DB, error) {
	path, err := a.preparer(logger).EnsureTaxonomyDB(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("taxonomy database unavailable, run prepare first: %w", err)
	}
	db, err := taxdb.Open(path, taxdb.WithCacheSize(a.config.TaxDB.CacheSize))
	if err != nil {
		return nil, fmt.Errorf("open taxonomy database: %w", err)
	}
	return db, nil
}

// newService wires the lookup service over db for the command line tools.
func (a *application) newService(db *taxdb.DB, logger *slog.Logger, opts ...lookup.Option) *lookup.Service {
	opts = append([]lookup.Option{
		lookup.WithWorkers(a.config.Lookup.Workers),
		lookup.WithLogger(logger),
	}, opts...)
	return lookup.NewService(taxonomy.New(db, logger), opts...)
}
