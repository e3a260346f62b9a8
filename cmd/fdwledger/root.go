package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	fdwledger "github.com/xraph/fdwledger"
	"github.com/xraph/fdwledger/catalog"
	"github.com/xraph/fdwledger/store/pgxstore"
)

// cli holds the state shared by all subcommands.
type cli struct {
	databaseURL string
	extension   string
	table       string
	searchPath  bool
	verbose     bool

	logger *slog.Logger
	store  *pgxstore.Store
	ledger *fdwledger.Ledger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "fdwledger",
		Short:        "Inspect and edit the FDW stats ledger.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return c.connect(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			c.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.databaseURL, "database-url", os.Getenv("FDWLEDGER_DATABASE_URL"),
		"postgres connection url (default $FDWLEDGER_DATABASE_URL)")
	flags.StringVar(&c.extension, "extension", catalog.DefaultExtension, "extension owning the stats table")
	flags.StringVar(&c.table, "table", catalog.DefaultTable, "stats table name")
	flags.BoolVar(&c.searchPath, "search-path", false, "resolve the stats table on the search path instead of the extension schema")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		c.listCmd(),
		c.getCmd(),
		c.metadataCmd(),
		c.incCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) connect(ctx context.Context, stderr io.Writer) error {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if c.databaseURL == "" {
		return errors.New("--database-url or FDWLEDGER_DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, c.databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	ext := c.extension
	if c.searchPath {
		ext = ""
	}
	c.store = pgxstore.New(pool, pgxstore.WithExtension(ext), pgxstore.WithTable(c.table))
	c.ledger = fdwledger.New(c.store, fdwledger.WithLogger(c.logger))
	return nil
}

func (c *cli) close() {
	if c.ledger != nil {
		_ = c.ledger.Stop()
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
