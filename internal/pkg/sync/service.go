package sync

import (
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/app/repository"
	"github.com/MatterDesk/MatterDesk/internal/pkg/cache"
	"github.com/MatterDesk/MatterDesk/internal/pkg/docketwise"
	"github.com/MatterDesk/MatterDesk/internal/pkg/notification"
	"github.com/MatterDesk/MatterDesk/internal/pkg/refcache"
)

// Notifier is the slice of the notification service the sync jobs
// depend on; fakes stand in for it in tests.
type Notifier interface {
	Dispatch(data notification.Data)
	HasConfiguredRecipients() (bool, error)
}

// Service runs the Docketwise sync jobs: reference data, bulk matter
// sync, the resumable detail backfill and the on-demand fetchers.
type Service struct {
	client   *docketwise.Client
	matters  repository.MatterRepository
	refs     repository.ReferenceRepository
	progress repository.SyncProgressRepository
	refCache *refcache.Cache
	notifier Notifier

	// sleep and now are injectable so tests neither wait out the
	// inter-call delay nor depend on the wall clock.
	sleep func(time.Duration)
	now   func() time.Time

	// invalidate drops cached dashboard and matter-list payloads after
	// a sync writes fresh data.
	invalidate func()
}

// Config holds the sync service dependencies.
type Config struct {
	Client   *docketwise.Client
	Matters  repository.MatterRepository
	Refs     repository.ReferenceRepository
	Progress repository.SyncProgressRepository
	RefCache *refcache.Cache
	Notifier Notifier
	Sleep    func(time.Duration)
	Now      func() time.Time

	// Invalidate overrides the default cache invalidation, mainly for
	// tests without a cache backend.
	Invalidate func()
}

// NewService creates a sync service.
func NewService(cfg Config) *Service {
	s := &Service{
		client:   cfg.Client,
		matters:  cfg.Matters,
		refs:     cfg.Refs,
		progress: cfg.Progress,
		refCache: cfg.RefCache,
		notifier: cfg.Notifier,
		sleep:    cfg.Sleep,
		now:      cfg.Now,

		invalidate: cfg.Invalidate,
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.invalidate == nil {
		s.invalidate = func() {
			for _, pattern := range []string{"dashboard:*", "matters:*"} {
				if err := cache.DeleteByPattern(pattern); err != nil {
					log.Warnf("[Sync] Cache invalidation for %s failed: %v", pattern, err)
				}
			}
		}
	}
	return s
}

// Summary reports what one sync invocation did.
type Summary struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// hasMore decides whether another list page exists. The pagination
// header is authoritative when present; without it a full page implies
// more records remain.
func hasMore(p *docketwise.Pagination, pageLen int) bool {
	if p != nil {
		return p.HasNext()
	}
	return pageLen >= docketwise.PageSize
}

// Progress is handed to the backfill's optional onProgress callback
// after every checkpoint.
type Progress struct {
	Processed    int     `json:"processed"`
	Failed       int     `json:"failed"`
	LastSyncedID int64   `json:"last_synced_id"`
	Percent      float64 `json:"percent"`
}
