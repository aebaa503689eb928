package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/example/oncall-scheduler/internal/application"
	"github.com/example/oncall-scheduler/internal/config"
	httptransport "github.com/example/oncall-scheduler/internal/http"
	"github.com/example/oncall-scheduler/internal/ics"
	"github.com/example/oncall-scheduler/internal/logging"
	"github.com/example/oncall-scheduler/internal/notification"
	"github.com/example/oncall-scheduler/internal/oncall"
	"github.com/example/oncall-scheduler/internal/persistence/sqlite"
)

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now
	clock := oncall.NewClock(now, cfg.SwitchoverHour, cfg.Timezone)

	var notifier notification.Notifier = notification.NewLogNotifier(logger)
	if cfg.WebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL, nil)
	}
	preferences := application.NewNotificationPreferences(storage)
	dispatcher := notification.NewDispatcher(notifier, preferences, logger)

	userService := application.NewUserService(storage, storage, storage, idGenerator, now, logger)
	rosterService := application.NewRosterService(storage, storage, storage, idGenerator, now, logger)
	assignmentService := application.NewAssignmentService(storage, storage, storage, storage, dispatcher, idGenerator, now, logger)
	onCallService := application.NewOnCallService(storage, storage, storage, clock, logger)
	feedService := application.NewFeedService(storage, storage, storage, storage, ics.NewSerializer(clock, ics.DefaultProdID), logger)

	reminder := notification.NewReminder(assignmentService, dispatcher, clock.Now, logger)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReminderSchedule, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := reminder.Run(runCtx); err != nil {
			logger.Error("reminder run failed", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule reminders", "error", err, "schedule", cfg.ReminderSchedule)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Users:       httptransport.NewUserHandler(userService, logger),
		Rosters:     httptransport.NewRosterHandler(rosterService, onCallService, logger),
		Assignments: httptransport.NewAssignmentHandler(assignmentService, onCallService, logger),
		Feeds:       httptransport.NewFeedHandler(feedService, logger),
		Actor:       httptransport.RequireActor(userService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("on-call API listening", "addr", server.Addr, "timezone", cfg.Timezone.String(), "switchover_hour", cfg.SwitchoverHour)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
