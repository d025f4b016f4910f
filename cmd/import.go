package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okian/crimemap/internal/adapters/source/sqlitestore"
	"github.com/okian/crimemap/pkg/logger"
)

func newImportCmd(c *cli) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy every dataset from the configured CSV source into SQLite",
		Long: `import downloads the constabulary list, the nationwide dataset and every
per-constabulary dataset from the http or file source and stores them in a
SQLite database. Serve from it afterwards with source_kind=sqlite.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if dbPath != "" {
				c.cfg.SQLitePath = dbPath
			}
			sum, err := c.importAll(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path; overrides sqlite_path")
	return cmd
}

func (c *cli) importAll(ctx context.Context) (sqlitestore.ImportSummary, error) {
	src, err := newCSVSource(c.cfg)
	if err != nil {
		return sqlitestore.ImportSummary{}, fmt.Errorf("import needs an http or file source: %w", err)
	}
	keys, err := newKeyBuilder(c.cfg)
	if err != nil {
		return sqlitestore.ImportSummary{}, err
	}
	if dir := filepath.Dir(c.cfg.SQLitePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return sqlitestore.ImportSummary{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	store, err := sqlitestore.Open(ctx, c.cfg.SQLitePath)
	if err != nil {
		return sqlitestore.ImportSummary{}, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			c.log.Error(ctx, "closing sqlite store", logger.Error(err))
		}
	}()

	c.log.Info(ctx, "importing datasets",
		logger.String("from", c.cfg.SourceBase),
		logger.String("into", c.cfg.SQLitePath),
	)
	return store.Import(ctx, src, keys, c.log.Named("import"))
}
