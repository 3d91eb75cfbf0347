package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/jmhodges/clock"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/api"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/booking"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/db"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/events"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/filestore"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/notification"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/reminder"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/store"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/sweeper"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/timeconv"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/validate"
)

func runMigrate(logger *log.Logger, configPath string) error {
	cfg, err := loadConfig(logger, configPath)
	if err != nil {
		return err
	}
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Println("database schema is up to date")
	return nil
}

func runServe(logger *log.Logger, configPath string) error {
	cfg, err := loadConfig(logger, configPath)
	if err != nil {
		return err
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			return errors.New("push is enabled but VAPID keys are missing; generate them and add them to your config file")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}
	if cfg.Notifier.BaseURL == "" {
		logger.Println("Warning: notifier.base_url is empty; reminders will fail to send")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()
	appStore := store.NewGormStore(gormDB, store.WithClock(clk))
	conv := timeconv.NewFromName(cfg.Scheduler.Timezone)
	files := filestore.NewLocal(cfg.Files.Root)

	sinks := events.Multi{events.LogSink{}}
	if webpushOptions != nil {
		pool := notification.NewPushPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions)
		pool.Start(ctx)
		sinks = append(sinks, pool)
	}

	notifier := notification.NewGatewayNotifier(cfg.Notifier.BaseURL, cfg.Notifier.Token, files)
	dispatcher := notification.NewDispatcher(notifier, conv, cfg.Notifier.SendTimeout)

	scheduler := reminder.New(appStore, dispatcher,
		reminder.WithClock(clk),
		reminder.WithWindow(cfg.Scheduler.ReminderWindow),
		reminder.WithSink(sinks),
	)
	defer scheduler.Stop()

	if _, err := scheduler.RecoverAll(ctx); err != nil {
		return err
	}

	expiry := sweeper.New(appStore, sinks, clk, cfg.Scheduler.SweepInterval, scheduler)
	go expiry.Run(ctx)

	svc := booking.NewService(booking.Deps{
		Meetings:  appStore,
		Scheduler: scheduler,
		Validator: validate.New(cfg.Booking.Rooms, cfg.Booking.MinDuration, conv, clk),
		Converter: conv,
		Files:     files,
		Sink:      sinks,
		Clock:     clk,
		Rooms:     cfg.Booking.Rooms,
	})

	// Initialize router
	router := api.NewRouter(api.NewHandler(svc, appStore, webpushOptions), cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Println("Shutdown signal received, stopping services...")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}
	cancel()

	logger.Println("Server gracefully stopped")
	return nil
}
