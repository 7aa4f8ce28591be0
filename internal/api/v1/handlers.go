package apiv1

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/app/repository"
	"github.com/MatterDesk/MatterDesk/internal/pkg/mailqueue"
	"github.com/MatterDesk/MatterDesk/internal/pkg/realtime"
	"github.com/MatterDesk/MatterDesk/internal/pkg/statistics"
	"github.com/MatterDesk/MatterDesk/internal/pkg/sync"
)

// APIServer exposes the sync, notification and dashboard endpoints.
type APIServer struct {
	Sync          *sync.Service
	Repos         *repository.Repositories
	Aggregator    *statistics.Aggregator
	MailQueue     *mailqueue.Queue
	Publisher     *realtime.Publisher
}

// NewAPIServer creates a new API server instance.
func NewAPIServer(
	syncService *sync.Service,
	repos *repository.Repositories,
	aggregator *statistics.Aggregator,
	mailQueue *mailqueue.Queue,
	publisher *realtime.Publisher,
) *APIServer {
	return &APIServer{
		Sync:       syncService,
		Repos:      repos,
		Aggregator: aggregator,
		MailQueue:  mailQueue,
		Publisher:  publisher,
	}
}

// RegisterHandlers wires the v1 routes.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	router.Post("/sync/reference", s.PostSyncReference)
	router.Post("/sync/matters", s.PostSyncMatters)
	router.Post("/sync/details", s.PostSyncDetails)
	router.Get("/sync/status", s.GetSyncStatus)

	router.Get("/matters", s.GetMatters)
	router.Get("/matters/:id/detail", s.GetMatterDetail)

	router.Get("/notifications", s.GetNotifications)
	router.Post("/notifications/:id/read", s.PostNotificationRead)

	router.Get("/dashboard/stats", s.GetDashboardStats)
	router.Get("/queue/stats", s.GetQueueStats)
}

// userID resolves the acting user from the X-User-ID header, default 1.
// Authentication lives in front of this service.
func userID(c *fiber.Ctx) uint {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return 1
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 1
	}
	return uint(id)
}

// GetPing handles the ping endpoint.
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// PostSyncReference runs the reference data sync synchronously.
func (s *APIServer) PostSyncReference(c *fiber.Ctx) error {
	processed, err := s.Sync.SyncReferenceData(c.Context(), userID(c))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"processed": processed})
}

// PostSyncMatters runs the bulk matter sync synchronously.
func (s *APIServer) PostSyncMatters(c *fiber.Ctx) error {
	summary, err := s.Sync.SyncMatters(c.Context(), userID(c))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(summary)
}

// PostSyncDetails launches the detail backfill in the background and
// returns immediately; progress is polled via GET /sync/status.
func (s *APIServer) PostSyncDetails(c *fiber.Ctx) error {
	uid := userID(c)
	go func() {
		if _, err := s.Sync.SyncMatterDetails(context.Background(), uid, nil); err != nil {
			log.Errorf("[API] Detail backfill for user %d failed: %v", uid, err)
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
}

// GetSyncStatus returns the three progress rows for the user.
func (s *APIServer) GetSyncStatus(c *fiber.Ctx) error {
	uid := userID(c)
	out := fiber.Map{}
	for _, syncType := range []string{
		models.SyncTypeMatters,
		models.SyncTypeMatterDetails,
		models.SyncTypeReference,
	} {
		progress, err := s.Repos.SyncProgress.Get(uid, syncType)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		out[syncType] = progress
	}
	return c.JSON(out)
}

// GetMatters returns the live-merged matter list.
func (s *APIServer) GetMatters(c *fiber.Ctx) error {
	matters, err := s.Sync.FetchMattersRealtime(c.Context(), userID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(matters)
}

// GetMatterDetail returns one matter, refreshed live when possible.
func (s *APIServer) GetMatterDetail(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid matter id"})
	}
	matter, err := s.Sync.FetchMatterDetail(c.Context(), userID(c), uint(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "matter not found"})
	}
	return c.JSON(matter)
}

// GetNotifications lists the user's notifications, unread count first.
func (s *APIServer) GetNotifications(c *fiber.Ctx) error {
	uid := userID(c)
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	notifications, err := s.Repos.Notification.List(uid, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	unread, err := s.Repos.Notification.CountUnread(uid)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"notifications": notifications, "unread": unread})
}

// PostNotificationRead marks a notification read and publishes the
// matching realtime event.
func (s *APIServer) PostNotificationRead(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification id"})
	}

	record, err := s.Repos.Notification.GetByID(uint(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "notification not found"})
	}
	if record.RecipientID != userID(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "notification not found"})
	}

	if err := s.Repos.Notification.MarkAsRead(uint(id)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if s.Publisher != nil {
		s.Publisher.Publish(realtime.Event{
			Type:             realtime.EventRead,
			NotificationID:   uint(id),
			RecipientID:      record.RecipientID,
			NotificationType: record.NotificationType,
			At:               time.Now(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// GetDashboardStats returns the KPI row, recomputing when asked or
// when no row exists yet.
func (s *APIServer) GetDashboardStats(c *fiber.Ctx) error {
	uid := userID(c)
	if c.QueryBool("recompute", false) {
		stats, err := s.Aggregator.RecomputeDashboardStats(uid)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(stats)
	}

	stats, err := s.Repos.Stats.Get(uid)
	if err != nil {
		stats, err = s.Aggregator.RecomputeDashboardStats(uid)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}
	return c.JSON(stats)
}

// GetQueueStats exposes the in-memory mail queue counters.
func (s *APIServer) GetQueueStats(c *fiber.Ctx) error {
	return c.JSON(s.MailQueue.Stats())
}
