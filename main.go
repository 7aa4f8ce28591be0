package main

import (
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/MatterDesk/MatterDesk/app/repository"
	"github.com/MatterDesk/MatterDesk/internal/pkg/cache"
	"github.com/MatterDesk/MatterDesk/internal/pkg/database"
	"github.com/MatterDesk/MatterDesk/internal/pkg/docketwise"
	"github.com/MatterDesk/MatterDesk/internal/pkg/env"
	"github.com/MatterDesk/MatterDesk/internal/pkg/jobmanager"
	"github.com/MatterDesk/MatterDesk/internal/pkg/mail"
	"github.com/MatterDesk/MatterDesk/internal/pkg/mailqueue"
	"github.com/MatterDesk/MatterDesk/internal/pkg/notification"
	"github.com/MatterDesk/MatterDesk/internal/pkg/realtime"
	"github.com/MatterDesk/MatterDesk/internal/pkg/refcache"
	"github.com/MatterDesk/MatterDesk/internal/pkg/router"
	"github.com/MatterDesk/MatterDesk/internal/pkg/scheduler"
	"github.com/MatterDesk/MatterDesk/internal/pkg/statistics"
	"github.com/MatterDesk/MatterDesk/internal/pkg/sync"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	mailQueue := mailqueue.New(mail.NewSMTPMailer())
	publisher := realtime.NewPublisher()
	notifier := notification.NewService(repos.Settings, repos.Notification, mailQueue, publisher)

	syncService := sync.NewService(sync.Config{
		Client:   docketwise.NewClientFromEnv(),
		Matters:  repos.Matter,
		Refs:     repos.Reference,
		Progress: repos.SyncProgress,
		RefCache: refcache.NewDefault(repos.Reference),
		Notifier: notifier,
	})
	aggregator := statistics.NewAggregator(repos.Matter, repos.Reference, repos.Stats)

	manager := jobmanager.InitializeManager(jobmanager.Config{
		MailQueue:     mailQueue,
		Notifications: notifier,
		SyncService:   syncService,
		Deadlines:     scheduler.NewDeadlineChecker(repos.Matter, repos.Notification, notifier),
		Aggregator:    aggregator,
		UserID:        syncUserID(),
	})
	manager.Start()

	app := fiber.New(fiber.Config{
		AppName: "MatterDesk",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Sync:       syncService,
		Repos:      repos,
		Aggregator: aggregator,
		MailQueue:  mailQueue,
		Publisher:  publisher,
	})

	return app
}

func syncUserID() uint {
	raw := env.GetEnv("SYNC_USER_ID", "1")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 1
	}
	return uint(id)
}
