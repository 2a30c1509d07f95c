package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/dashboard-gateway/credentials"
	"github.com/jrsteele09/dashboard-gateway/engine"
	"github.com/jrsteele09/dashboard-gateway/internal/config"
	"github.com/jrsteele09/dashboard-gateway/reports"
	"github.com/jrsteele09/dashboard-gateway/server"
	"github.com/jrsteele09/dashboard-gateway/tenants"
	"github.com/jrsteele09/dashboard-gateway/token"
	"github.com/jrsteele09/dashboard-gateway/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Multi-tenant reporting dashboard gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the gateway HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve()
			},
		},
		&cobra.Command{
			Use:   "hash <password>",
			Short: "Print the stored form of a user password",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				hash, err := credentials.UTF16SHA256Hasher{}.Hash(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the gateway version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func serve() error {
	c := config.New()
	setupLogging(c)

	if err := config.Validate(c); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}
	displayAppname(c.GetAppName())

	err := run(c)
	if err != nil {
		log.Error().Err(err).Msg("Error running server")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engineClient := engine.NewClient(engine.SettingsFromConfig(c), engine.WithMetrics(engine.NewMetrics(registry)))

	tenantCache := tenants.NewExistenceCache(engineClient, c.GetTenantCacheTTL(), tenants.WithRegisterer(registry))
	if dbs, err := engineClient.RefreshDatabases(ctx); err != nil {
		log.Warn().Err(err).Msg("Engine catalog unavailable at startup, tenants will be checked on demand")
	} else {
		tenantCache.Prime(dbs)
	}
	refresher := tenants.NewRefresher(engineClient, tenantCache, c.GetTenantCacheTTL(), nil)
	refresher.Start(ctx)
	defer refresher.Stop()

	queries, err := reports.LoadQueries(c.GetQueriesFile())
	if err != nil {
		return err
	}

	tokens, err := token.NewManagerFromConfig(c)
	if err != nil {
		return err
	}

	userService := users.NewService(
		users.NewEngineRepo(engineClient, queries.Login, engineClient),
		credentials.UTF16SHA256Hasher{},
	)

	handler, err := server.New(c, server.Deps{
		Tokens:    tokens,
		Tenants:   tenantCache,
		Users:     userService,
		Reports:   reports.NewExecutor(engineClient, queries, reports.WithBranchReportID(c.GetBranchReportID())),
		Databases: engineClient,
		Registry:  registry,
	})
	if err != nil {
		return err
	}
	defer handler.Close()

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(srv)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if !c.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
