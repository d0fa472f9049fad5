package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/optionstore"
	"github.com/goliatone/go-settings/schema/openapi"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type target struct {
	tab     string
	section string
}

func (t *target) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.tab, "tab", "t", "", "tab id (default: first tab)")
	cmd.Flags().StringVar(&t.section, "section", "", "section id (default section when empty)")
}

func (t target) request() settings.RequestContext {
	return settings.RequestContext{
		Tab:     settings.SanitizeSlug(t.tab),
		Section: settings.SanitizeSlug(t.section),
	}
}

func newRenderCommand(c *cli) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the computed view of a tab",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			manager, err := c.manager(ctx)
			if err != nil {
				return err
			}
			resp := manager.Handle(ctx, t.request())
			if resp.Location != "" {
				return fmt.Errorf("tab or section not found, try %s", resp.Location)
			}
			if resp.Err != nil {
				return resp.Err
			}
			return c.print(cmd.OutOrStdout(), resp.View)
		},
	}
	t.bind(cmd)
	return cmd
}

func newSaveCommand(c *cli) *cobra.Command {
	var (
		t      target
		sets   []string
		actor  string
		tenant string
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Sanitize and persist values for a tab",
		Long: `Save posts values in form notation and persists them through the same
sanitize and write path as the HTTP handler.

Examples:
  settingsctl save -s acme.yaml -t general --set 'acme_general[site_name]=Acme'
  settingsctl save -s acme.yaml -t mail --section smtp --set 'acme_mail_smtp[transport]=smtp'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			form, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			manager, err := c.manager(ctx)
			if err != nil {
				return err
			}
			req := t.request()
			req.Posted = settings.ParseForm(form)
			req.Save = true
			req.ActorID, req.TenantID = actor, tenant

			result, err := manager.Save(ctx, req)
			if errors.Is(err, settings.ErrSaveNotPermitted) {
				return fmt.Errorf("save refused for tab %q", req.Tab)
			}
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), result)
		},
	}
	t.bind(cmd)
	cmd.Flags().StringArrayVar(&sets, "set", nil, "form value as key=value, repeatable")
	cmd.Flags().StringVar(&actor, "actor", "", "actor id recorded with the save")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id recorded with the save")
	return cmd
}

func parseAssignments(sets []string) (url.Values, error) {
	form := url.Values{}
	for _, assignment := range sets {
		key, value, ok := strings.Cut(assignment, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", assignment)
		}
		form.Add(strings.TrimSpace(key), value)
	}
	return form, nil
}

func newSnapshotCommand(c *cli) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the resolved values of a section",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			manager, err := c.manager(ctx)
			if err != nil {
				return err
			}
			res, err := manager.Resolve(ctx, t.request())
			if err != nil {
				return err
			}
			snapshot, err := manager.Snapshot(ctx, res.Tab, res.Section)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), snapshot)
		},
	}
	t.bind(cmd)
	return cmd
}

func newSchemaCommand(c *cli) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print an OpenAPI document describing every settings form",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			manager, err := c.manager(ctx)
			if err != nil {
				return err
			}
			forms := collectForms(ctx, manager)
			opts := []openapi.GeneratorOption{}
			if title != "" {
				opts = append(opts, openapi.WithInfo(title, version))
			}
			doc, err := openapi.NewGenerator(opts...).Generate(forms...)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title")
	return cmd
}

func collectForms(ctx context.Context, manager *settings.Manager) []openapi.Form {
	var forms []openapi.Form
	for _, tab := range manager.Tabs(ctx) {
		page, ok := manager.Page(tab.ID)
		if !ok {
			continue
		}
		for _, section := range manager.Sections(ctx, page) {
			forms = append(forms, openapi.Form{
				Record: manager.Record(page, section.ID),
				Title:  tab.Label + " / " + section.Label,
				Fields: manager.Fields(ctx, page, section.ID),
			})
		}
	}
	return forms
}

func newMigrateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the options table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := c.connect(ctx)
			if err != nil {
				return err
			}
			db := stdlib.OpenDBFromPool(pool)
			defer db.Close()

			versions, err := optionstore.Migrate(ctx, db)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "options table is up to date")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied migrations: %v\n", versions)
			return nil
		},
	}
}

func newServeCommand(c *cli) *cobra.Command {
	var (
		addr     string
		basePath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the settings pages over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			registry := prometheus.NewRegistry()
			metrics := settings.NewMetrics("settings")
			if err := metrics.Register(registry); err != nil {
				return err
			}
			manager, err := c.manager(ctx,
				settings.WithMetrics(metrics),
				settings.WithBasePath(basePath),
				settings.WithRequestIdentity(func(r *http.Request) (string, string) {
					return r.Header.Get("X-Actor-ID"), r.Header.Get("X-Tenant-ID")
				}),
			)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle(basePath, manager.Handler())
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			c.logger().Info("settingsctl: serving", "addr", addr, "path", basePath)
			return server.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&basePath, "path", "/settings", "settings page path")
	return cmd
}
