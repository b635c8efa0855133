package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/taxonid/internal"
	"github.com/starford/taxonid/internal/models"
	"github.com/starford/taxonid/internal/namelist"
	pkgconfig "github.com/starford/taxonid/pkg/config"
)

var version = "dev"

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func prepare(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunPrepare(ctx, cmd.Bool("force"), opts...)
}

func resolve(ctx context.Context, cmd *cli.Command) error {
	queries, err := queries(cmd)
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunResolve(ctx, queries, opts...)
}

// queries collects the names given on the command line, or the list read
// from --file ("-" is stdin).
func queries(cmd *cli.Command) ([]models.Query, error) {
	rank := cmd.String("rank")
	if path := cmd.String("file"); path != "" {
		if cmd.Args().Present() {
			return nil, errors.New("names and --file are mutually exclusive")
		}
		data, err := readList(path)
		if err != nil {
			return nil, err
		}
		qs, err := namelist.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if rank != "" {
			for i := range qs {
				qs[i].Rank = rank
			}
		}
		return qs, nil
	}

	names := cmd.Args().Slice()
	if len(names) == 0 {
		return nil, errors.New("at least one NAME or --file is required")
	}
	if rank == "" {
		return nil, errors.New("--rank is required with NAME arguments")
	}
	qs := make([]models.Query, len(names))
	for i, name := range names {
		qs[i] = models.Query{Name: name, Rank: rank}
	}
	return qs, nil
}

func readList(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func ascendants(ctx context.Context, cmd *cli.Command) error {
	id, err := taxIDArg(cmd)
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunAscendants(ctx, id, cmd.Bool("names"), opts...)
}

func rank(ctx context.Context, cmd *cli.Command) error {
	id, err := taxIDArg(cmd)
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunRank(ctx, id, opts...)
}

func taxIDArg(cmd *cli.Command) (models.TaxID, error) {
	if cmd.Args().Len() != 1 {
		return 0, errors.New("exactly one TAXID is required")
	}
	n, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid taxid %q", cmd.Args().First())
	}
	return models.TaxID(n), nil
}

func main() {
	cmd := &cli.Command{
		Name:    "taxonid",
		Usage:   "Resolve prokaryotic taxon names to NCBI taxonomy identifiers",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:  "prepare",
				Usage: "Download and unpack the reference data",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Fetch and extract again"},
				},
				Action: prepare,
			},
			{
				Name:      "resolve",
				Usage:     "Resolve names to taxids",
				ArgsUsage: "NAME...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "rank", Aliases: []string{"r"}, Usage: "Rank of every NAME; overrides ranks from --file"},
					&cli.StringFlag{Name: "file", Usage: "Query list, one name<TAB>rank per line (- for stdin)"},
				},
				Action: resolve,
			},
			{
				Name:      "ascendants",
				Usage:     "Print the chain from TAXID to the root",
				ArgsUsage: "TAXID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "names", Usage: "Label every taxid"},
				},
				Action: ascendants,
			},
			{
				Name:      "rank",
				Usage:     "Print the rank of TAXID",
				ArgsUsage: "TAXID",
				Action:    rank,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
