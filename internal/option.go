package internal

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/taxonid/internal/refdata"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	version   string
	logOutput io.Writer
	output    io.Writer
	registry  *prometheus.Registry
	refOpts   []refdata.Option
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithLogOutput redirects log records. The server logs to stdout and the
// command line tools to stderr by default.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithOutput sets where command line results are written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.output = w
	}
}

// WithRegistry sets the Prometheus registry served on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *application) {
		a.registry = reg
	}
}

// WithRefdataOptions passes options to the reference data preparer.
func WithRefdataOptions(opts ...refdata.Option) Option {
	return func(a *application) {
		a.refOpts = append(a.refOpts, opts...)
	}
}
