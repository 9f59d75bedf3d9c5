package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/cradoe/vestra/internal/app"
	"github.com/cradoe/vestra/internal/market"
	seeders "github.com/cradoe/vestra/internal/seeder"
	"github.com/cradoe/vestra/internal/version"
	"github.com/cradoe/vestra/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	showVersion := flag.Bool("version", false, "display version and exit")
	seed := flag.Bool("seed", false, "seed reference data and exit")
	promoteAdmin := flag.String("promote-admin", "", "promote the account with this email to admin and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version.Get())
		return nil
	}

	cfg := app.LoadConfig(logger)

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if *seed || *promoteAdmin != "" {
		seeder := seeders.New(application.DB, logger)

		if *seed {
			if err := seeder.Run(); err != nil {
				return err
			}
		}

		if *promoteAdmin != "" {
			return seeder.PromoteAdmin(*promoteAdmin)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := worker.New(&worker.Worker{
		KafkaStream: application.Kafka,
		ProfileRepo: application.DB.Profile(),
		Mailer:      application.Mailer,
		Helper:      application.Helper(),
		Logger:      logger,
	})

	go func() {
		if err := notifier.NotificationWorker(ctx); err != nil {
			logger.Error("notification worker exited", "error", err.Error())
		}
	}()

	refresher, err := market.StartRefresher(application.Market, logger)
	if err != nil {
		return err
	}
	defer refresher.Stop()

	return application.ServeHTTP()
}
