package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/optionstore"
	"github.com/goliatone/go-settings/pkg/schemafile"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// dsnEnv is read when --dsn is not given.
const dsnEnv = "SETTINGS_DSN"

type cli struct {
	schemaPath string
	dsn        string
	output     string
	verbose    bool

	pool *pgxpool.Pool
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "settingsctl",
		Short:         "Inspect and edit namespaced settings pages",
		Long:          `settingsctl loads settings pages from a YAML or TOML schema file and renders, saves or describes them against an option store.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.schemaPath, "schema", "s", "", "schema file (.yaml, .yml or .toml)")
	flags.StringVar(&c.dsn, "dsn", "", "Postgres connection string (default $"+dsnEnv+", memory store when empty)")
	flags.StringVarP(&c.output, "output", "o", "json", "output format: json or yaml")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newRenderCommand(c),
		newSaveCommand(c),
		newSnapshotCommand(c),
		newSchemaCommand(c),
		newMigrateCommand(c),
		newServeCommand(c),
	)
	return root
}

func (c *cli) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *cli) dataSource() string {
	if c.dsn != "" {
		return c.dsn
	}
	return os.Getenv(dsnEnv)
}

func (c *cli) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if c.pool != nil {
		return c.pool, nil
	}
	dsn := c.dataSource()
	if dsn == "" {
		return nil, fmt.Errorf("no database configured: pass --dsn or set %s", dsnEnv)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	c.pool = pool
	return pool, nil
}

func (c *cli) store(ctx context.Context) (optionstore.Store, error) {
	if c.dataSource() == "" {
		return optionstore.NewMemoryStore(), nil
	}
	pool, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	return optionstore.NewPGStore(pool), nil
}

func (c *cli) close() {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
}

func (c *cli) loadSchema() (schemafile.Document, error) {
	if c.schemaPath == "" {
		return schemafile.Document{}, fmt.Errorf("--schema is required")
	}
	return schemafile.Load(c.schemaPath)
}

// manager builds a manager from the schema file and the configured store.
func (c *cli) manager(ctx context.Context, opts ...settings.Option) (*settings.Manager, error) {
	doc, err := c.loadSchema()
	if err != nil {
		return nil, err
	}
	store, err := c.store(ctx)
	if err != nil {
		return nil, err
	}
	namespace := doc.Namespace
	if namespace == "" {
		namespace = "settings"
	}
	opts = append([]settings.Option{settings.WithLogger(c.logger())}, opts...)
	manager, err := settings.New(namespace, store, opts...)
	if err != nil {
		return nil, err
	}
	if err := doc.Register(manager); err != nil {
		return nil, err
	}
	return manager, nil
}

func (c *cli) print(w io.Writer, value any) error {
	switch strings.ToLower(c.output) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toPlain(value)); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	return fmt.Errorf("unknown output format %q", c.output)
}

// toPlain round-trips value through JSON so YAML output honors json tags.
func toPlain(value any) any {
	raw, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return value
	}
	return plain
}
