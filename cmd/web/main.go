package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/config"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/httpserver"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/metrics"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/observability"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/routes"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/settings"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string
	root := &cobra.Command{
		Use:           "web",
		Short:         "TPC Global member site",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), addr)
		},
	}
	root.PersistentFlags().StringVar(&addr, "addr", "", "listen address (overrides "+config.Prefix+"SERVER_ADDR)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), addr)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "routes",
		Short: "Validate and print the route table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printRoutes(cmd, routes.Table(routes.Deps{}))
		},
	})
	return root
}

func printRoutes(cmd *cobra.Command, table []routes.Descriptor) error {
	if err := routes.Validate(table); err != nil {
		return fmt.Errorf("route table: %w", err)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPATTERN\tPOLICY\tEXAMPLE")
	for _, d := range table {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Pattern, d.Policy, d.Example)
	}
	return tw.Flush()
}

func serve(parent context.Context, addr string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("web")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	watcher := settings.NewWatcher(b.settings,
		settings.WithRefreshInterval(cfg.Settings.RefreshInterval),
		settings.WithLogger(logger.Named("settings")),
	)
	if state := watcher.Load(ctx); state.Err != nil {
		// non-exempt pages show maintenance until a read succeeds
		logger.Warn("initial settings read failed", zap.Error(state.Err))
	}

	cookies, err := session.NewCookieManager(session.CookieConfig{
		CookieName:   cfg.Session.CookieName,
		HashKey:      cfg.Session.HashKeyBytes(),
		BlockKey:     cfg.Session.BlockKeyBytes(),
		CookieSecure: cfg.Session.Secure,
		IdleTimeout:  cfg.Session.IdleTimeout,
		Lifetime:     cfg.Session.Lifetime,
	})
	if err != nil {
		return fmt.Errorf("session cookies: %w", err)
	}
	prefs := i18n.NewCookiePreferences(i18n.CookieConfig{
		Name:     cfg.Session.LanguageCookie,
		HashKey:  cfg.Session.HashKeyBytes(),
		BlockKey: cfg.Session.BlockKeyBytes(),
		Secure:   cfg.Session.Secure,
	})

	srv, err := httpserver.New(httpserver.Config{
		Address:        cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		GateWait:       cfg.Gate.Wait,
		CookieSecure:   cfg.Session.Secure,
		TraceProjectID: cfg.Firebase.ProjectID,
		StaticDir:      cfg.Server.StaticDir,
	}, httpserver.Deps{
		Table:       routes.Table(routes.Deps{Members: b.members}),
		Resolver:    gate.NewResolver(session.ContextSource{}, b.profiles, b.admins, m),
		Settings:    watcher,
		Sessions:    cookies,
		Verifier:    b.verifier,
		Preferences: prefs,
		Members:     b.members,
		Bundle:      i18n.MustDefault(),
		Metrics:     m,
		Gatherer:    registry,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		logger.Info("http server stopped", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}
