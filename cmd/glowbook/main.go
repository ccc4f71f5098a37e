// Command glowbook serves the salon marketplace API over the configured
// cloud backend. With -migrate-to it copies every table from the active
// backend into another configured backend and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kbukum/glowbook/bootstrap"
	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/config"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/observability"
	"github.com/kbukum/glowbook/providers"
	"github.com/kbukum/glowbook/server"
	"github.com/kbukum/glowbook/server/api"
	"github.com/kbukum/glowbook/server/endpoint"
	"github.com/kbukum/glowbook/server/middleware"
	"github.com/kbukum/glowbook/version"
)

const (
	serviceName      = "glowbook"
	operatorTokenTTL = 24 * time.Hour
)

func main() {
	configFile := flag.String("config", "", "path to config.yml")
	envFile := flag.String("env", "", "path to a .env file")
	migrateTo := flag.String("migrate-to", "", "candidate label to migrate all data into, then exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	operatorToken := flag.String("operator-token", "", "print an admin operator token for this subject, then exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(serviceName, version.Get())
		return
	}

	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}

	var cfg AppConfig
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().String()
	}
	if *operatorToken != "" {
		token, err := middleware.IssueOperatorToken([]byte(cfg.Server.OperatorSecret), *operatorToken, string(model.RoleAdmin), operatorTokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "operator token:", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}
	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(context.Background(), app, *migrateTo); err != nil {
		app.Logger.Fatal("glowbook exited", logger.Fields(logger.FieldError, err))
	}
}

func run(ctx context.Context, app *bootstrap.App[*AppConfig], migrateTo string) error {
	cfg := app.Cfg
	log := app.Logger

	tel, err := observability.Setup(ctx, cfg.Observability, cfg.Name, cfg.Version, cfg.Environment, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", logger.Fields(logger.FieldError, err))
		}
	}()

	metrics, err := observability.NewProviderMetrics(observability.Meter())
	if err != nil {
		return err
	}
	svc := cloud.NewService(cfg.Cloud, providers.Source(log, metrics), log, cloud.WithMetrics(metrics))
	if err := app.RegisterComponent(svc); err != nil {
		return err
	}

	if migrateTo != "" {
		target, err := cfg.candidate(migrateTo)
		if err != nil {
			return err
		}
		return app.RunTask(ctx, func(ctx context.Context) error {
			return migrate(ctx, svc, target, log)
		})
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()
	endpoint.Register(srv.Engine(), cfg.Name, app.Health)
	api.New(svc, log, api.WithOperatorSecret(cfg.Server.OperatorSecret)).Register(srv.Engine())
	if dir := cfg.Cloud.Providers[cloud.NameLocal]["storage_path"]; dir != "" {
		// Local storage URLs point at public_base_url, served from here.
		srv.Engine().Static("/files", dir)
	}
	if err := app.RegisterComponent(srv); err != nil {
		return err
	}
	return app.Run(ctx)
}

func migrate(ctx context.Context, svc *cloud.Service, target cloud.Candidate, log *logger.Logger) error {
	from := svc.ProviderStatus().Current
	if from == target.Label {
		return fmt.Errorf("%s is already the active provider", target.Label)
	}
	report, err := svc.MigrateToProvider(ctx, target.Provider.Name, target.Provider.Credentials)
	if err != nil {
		return err
	}
	exported, imported, skipped, failed := report.Totals()
	for table, t := range report.Tables {
		for _, f := range t.Failures {
			log.Warn("record not migrated", logger.Fields(logger.FieldTable, table, logger.FieldRecordID, f.ID, logger.FieldError, f.Error))
		}
	}
	log.Info("migration complete", logger.Fields(
		"from", from, "to", target.Label,
		"exported", exported, "imported", imported, "skipped", skipped, "failed", failed,
	))
	if failed > 0 {
		return fmt.Errorf("%d records failed to migrate", failed)
	}
	return nil
}
