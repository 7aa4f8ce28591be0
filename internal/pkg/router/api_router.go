package router

import (
	apiv1 "github.com/MatterDesk/MatterDesk/internal/api/v1"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/MatterDesk/MatterDesk/app/repository"
	"github.com/MatterDesk/MatterDesk/internal/pkg/mailqueue"
	"github.com/MatterDesk/MatterDesk/internal/pkg/realtime"
	"github.com/MatterDesk/MatterDesk/internal/pkg/statistics"
	"github.com/MatterDesk/MatterDesk/internal/pkg/sync"
)

// Deps carries the services the API handlers delegate to.
type Deps struct {
	Sync       *sync.Service
	Repos      *repository.Repositories
	Aggregator *statistics.Aggregator
	MailQueue  *mailqueue.Queue
	Publisher  *realtime.Publisher
}

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.deps.Sync, h.deps.Repos, h.deps.Aggregator, h.deps.MailQueue, h.deps.Publisher)
	apiv1.RegisterHandlers(v1, apiServer)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
