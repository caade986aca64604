package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/0xPuncker/andon-notifier/internal/api"
	"github.com/0xPuncker/andon-notifier/internal/config"
	"github.com/0xPuncker/andon-notifier/internal/cron"
	"github.com/0xPuncker/andon-notifier/internal/notifications"
	"github.com/0xPuncker/andon-notifier/internal/report"
	"github.com/0xPuncker/andon-notifier/internal/store"
	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

const bannerText = `
{{ .Title "Andon Notifier" "" 0 }}
{{ .AnsiBackground.BrightBlue }}{{ .AnsiColor.White }}
{{ .AnsiReset }}
`

const departmentsTTL = 5 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env.local")
	}

	banner.Init(colorable.NewColorableStdout(), true, true, strings.NewReader(bannerText))

	configPath := flag.String("config", "config/config.json", "path to config file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05-07:00",
	})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	interval, _ := cfg.Scheduler.IntervalDuration()
	location, _ := cfg.Scheduler.Location()
	lease, _ := cfg.Scheduler.LeaseDuration()
	sendTimeout, _ := cfg.Scheduler.SendTimeoutDuration()
	sendDelay, _ := cfg.Notifications.SendDelayDuration()

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	jobStore := store.New(db, store.WithLease(lease))

	mailer, err := notifications.NewSMTPMailer(cfg.SMTP, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize SMTP mailer: %v", err)
	}

	service := notifications.NewNotificationService(
		report.NewSQLSource(db),
		notifications.NewDirectory(cfg.Notifications.DepartmentsFile, departmentsTTL, logger),
		mailer,
		logger,
		notifications.WithSendDelay(sendDelay),
		notifications.WithDashboardURL(cfg.Notifications.DashboardURL),
	)

	scheduler := cron.NewScheduler(cron.SchedulerConfig{
		Interval:    interval,
		Location:    location,
		SendTimeout: sendTimeout,
	}, jobStore, logger)
	scheduler.RegisterTask("department-report", service)

	if err := scheduler.LoadPredefinedJobs(cfg.Jobs.Predefined); err != nil {
		logger.Fatalf("Failed to load predefined jobs: %v", err)
	}

	if cfg.IsProduction() {
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatalf("Failed to start scheduler: %v", err)
		}
	} else {
		logger.WithField("environment", cfg.Environment).Info("Not in production, notification jobs are not scheduled")
	}

	server := api.NewServer(api.NewHandler(jobStore, scheduler, logger, cfg), cfg.Server)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Infof("Server started on port %s - Press Ctrl+C to stop.", cfg.Server.Port)

	<-stop
	logger.Info("Shutting down server...")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}

	logger.Info("Server stopped")
}
