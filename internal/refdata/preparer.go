// Package refdata prepares the on-disk reference data: the taxonomy database
// consumed by the resolver and the marker data bundle used alongside it.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/taxonid/internal/apperr"
)

// Config locates the reference data.
type Config struct {
	// Dir is the reference directory holding every download.
	Dir string
	// TaxonomyDB is the taxonomy database file name inside Dir.
	TaxonomyDB string
	// TaxonomyDBURL, when set, is fetched if the database is missing.
	TaxonomyDBURL string
	// DataURL is the gzipped tarball of the marker data bundle. Empty skips the bundle.
	DataURL string
	// DataRoot is the directory inside Dir the bundle is extracted to.
	DataRoot string
	// SetRootCommand is run with the data root appended. Empty skips it.
	SetRootCommand []string
}

// TaxonomyDBPath returns the path of the taxonomy database.
func (c Config) TaxonomyDBPath() string {
	return filepath.Join(c.Dir, c.TaxonomyDB)
}

// DataRootPath returns the extraction directory of the data bundle.
func (c Config) DataRootPath() string {
	return filepath.Join(c.Dir, c.DataRoot)
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Preparer downloads and unpacks reference data.
type Preparer struct {
	cfg     Config
	logger  *slog.Logger
	client  *http.Client
	run     CommandRunner
	backoff time.Duration
}

// Option configures a Preparer.
type Option func(*Preparer)

// WithHTTPClient replaces the download client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Preparer) {
		p.client = c
	}
}

// WithCommandRunner replaces how the set-root command is executed.
func WithCommandRunner(run CommandRunner) Option {
	return func(p *Preparer) {
		p.run = run
	}
}

// WithBackoff sets the first retry delay; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(p *Preparer) {
		p.backoff = d
	}
}

// New creates a Preparer.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Preparer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Preparer{
		cfg:     cfg,
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Minute},
		run:     execCommand,
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func execCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Prepare makes the reference data usable: the taxonomy database exists and,
// when configured, the data bundle is downloaded, extracted and registered.
func (p *Preparer) Prepare(ctx context.Context, force bool) error {
	p.logger.Info("===== Prepare reference data =====", slog.String("dir", p.cfg.Dir))

	if _, err := p.EnsureTaxonomyDB(ctx, force); err != nil {
		return err
	}

	if p.cfg.DataURL != "" {
		tarball, err := p.DownloadIfMissing(ctx, p.cfg.DataURL, p.cfg.Dir, force)
		if err != nil {
			return err
		}
		root, err := p.CheckDataDirectory(force)
		if err != nil {
			return err
		}
		if err := p.Extract(tarball, root, force); err != nil {
			return err
		}
		if err := p.SetRoot(ctx, root); err != nil {
			return err
		}
	}

	p.logger.Info("===== Completed preparing reference data =====")
	return nil
}

// EnsureTaxonomyDB returns the taxonomy database path, downloading it when
// missing (or when force is set) and a URL is configured.
func (p *Preparer) EnsureTaxonomyDB(ctx context.Context, force bool) (string, error) {
	path := p.cfg.TaxonomyDBPath()
	_, statErr := os.Stat(path)
	if statErr == nil && !force {
		return path, nil
	}
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return "", fmt.Errorf("refdata: stat %s: %w", path, statErr)
	}
	if p.cfg.TaxonomyDBURL == "" {
		if statErr == nil {
			return path, nil
		}
		return "", fmt.Errorf("refdata: taxonomy database %s: %w", path, apperr.ErrNotFound)
	}

	p.logger.Warn("refdata: fetching taxonomy database", slog.String("path", path))
	if err := os.MkdirAll(p.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("refdata: mkdir %s: %w", p.cfg.Dir, err)
	}
	if err := p.download(ctx, p.cfg.TaxonomyDBURL, p.cfg.Dir, p.cfg.TaxonomyDB); err != nil {
		return "", err
	}
	return path, nil
}

// CheckDataDirectory creates the data root, wiping it first when force is set.
func (p *Preparer) CheckDataDirectory(force bool) (string, error) {
	root := p.cfg.DataRootPath()
	if force {
		if err := os.RemoveAll(root); err != nil {
			return "", fmt.Errorf("refdata: remove %s: %w", root, err)
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("refdata: mkdir %s: %w", root, err)
	}
	return root, nil
}

// SetRoot registers root with the external tool that consumes the bundle.
func (p *Preparer) SetRoot(ctx context.Context, root string) error {
	if len(p.cfg.SetRootCommand) == 0 {
		p.logger.Debug("refdata: no set-root command configured")
		return nil
	}
	name := p.cfg.SetRootCommand[0]
	args := append(append([]string{}, p.cfg.SetRootCommand[1:]...), root)
	if err := p.run(ctx, name, args...); err != nil {
		return fmt.Errorf("refdata: set root: %w", err)
	}
	p.logger.Info("refdata: data root is set", slog.String("root", root))
	return nil
}
