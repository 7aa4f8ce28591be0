package jobmanager

import (
	"context"
	"strconv"
	gosync "sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/internal/pkg/env"
	"github.com/MatterDesk/MatterDesk/internal/pkg/mailqueue"
	"github.com/MatterDesk/MatterDesk/internal/pkg/notification"
	"github.com/MatterDesk/MatterDesk/internal/pkg/scheduler"
	"github.com/MatterDesk/MatterDesk/internal/pkg/statistics"
	"github.com/MatterDesk/MatterDesk/internal/pkg/sync"
)

// Manager owns the background machinery: the mail queue, the
// notification dispatch worker, and the tickers for deadline checks,
// scheduled syncs and dashboard recomputes. Explicitly constructed so
// tests can run isolated instances; GetManager is a convenience for
// the app wiring.
type Manager struct {
	mailQueue     *mailqueue.Queue
	notifications *notification.Service
	syncService   *sync.Service
	deadlines     *scheduler.DeadlineChecker
	aggregator    *statistics.Aggregator
	userID        uint

	deadlineTicker  *time.Ticker
	referenceTicker *time.Ticker
	backfillTicker  *time.Ticker
	statsTicker     *time.Ticker
	stopCh          chan struct{}
	wg              gosync.WaitGroup
	mu              gosync.Mutex
	running         bool
}

// Config wires the manager's collaborators.
type Config struct {
	MailQueue     *mailqueue.Queue
	Notifications *notification.Service
	SyncService   *sync.Service
	Deadlines     *scheduler.DeadlineChecker
	Aggregator    *statistics.Aggregator

	// UserID is the account the scheduled sync jobs run for.
	UserID uint
}

var (
	globalManager *Manager
	managerMu     gosync.Mutex
)

// NewManager creates a background job manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		mailQueue:     cfg.MailQueue,
		notifications: cfg.Notifications,
		syncService:   cfg.SyncService,
		deadlines:     cfg.Deadlines,
		aggregator:    cfg.Aggregator,
		userID:        cfg.UserID,
		stopCh:        make(chan struct{}),
	}
}

// InitializeManager installs the global manager instance.
func InitializeManager(cfg Config) *Manager {
	managerMu.Lock()
	defer managerMu.Unlock()
	globalManager = NewManager(cfg)
	return globalManager
}

// GetManager returns the global manager; nil before InitializeManager.
func GetManager() *Manager {
	managerMu.Lock()
	defer managerMu.Unlock()
	return globalManager
}

// GetMailQueue returns the managed mail queue.
func (m *Manager) GetMailQueue() *mailqueue.Queue {
	return m.mailQueue
}

func intervalFromEnv(key string, unit time.Duration, fallback time.Duration) time.Duration {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Warnf("[JobManager] Invalid %s=%q, using default", key, raw)
		return fallback
	}
	return time.Duration(v) * unit
}

// Start launches the background workers and tickers.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate the stop channel so the manager can be restarted.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobManager] Starting background workers")

	m.notifications.Start()

	deadlineInterval := intervalFromEnv("DEADLINE_CHECK_INTERVAL_MINUTES", time.Minute, time.Hour)
	m.deadlineTicker = time.NewTicker(deadlineInterval)
	m.wg.Add(1)
	go m.deadlineWorker()

	referenceInterval := intervalFromEnv("REFERENCE_SYNC_INTERVAL_HOURS", time.Hour, 12*time.Hour)
	m.referenceTicker = time.NewTicker(referenceInterval)
	m.wg.Add(1)
	go m.referenceWorker()

	backfillInterval := intervalFromEnv("BACKFILL_INTERVAL_HOURS", time.Hour, 24*time.Hour)
	m.backfillTicker = time.NewTicker(backfillInterval)
	m.wg.Add(1)
	go m.backfillWorker()

	statsInterval := intervalFromEnv("STATS_RECOMPUTE_INTERVAL_MINUTES", time.Minute, 30*time.Minute)
	m.statsTicker = time.NewTicker(statsInterval)
	m.wg.Add(1)
	go m.statsWorker()

	log.Info("[JobManager] Started successfully")
}

// Stop shuts down the tickers, the notification worker and the mail
// queue, draining in-flight work first.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	log.Info("[JobManager] Stopping background workers...")

	for _, t := range []*time.Ticker{m.deadlineTicker, m.referenceTicker, m.backfillTicker, m.statsTicker} {
		if t != nil {
			t.Stop()
		}
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.notifications.Stop()
	m.mailQueue.Stop()

	log.Info("[JobManager] Stopped successfully")
}

func (m *Manager) deadlineWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobManager] Deadline worker stopping")
			return
		case <-m.deadlineTicker.C:
			if _, err := m.deadlines.CheckDeadlines(); err != nil {
				log.Errorf("[JobManager] Deadline check failed: %v", err)
			}
		}
	}
}

func (m *Manager) referenceWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobManager] Reference sync worker stopping")
			return
		case <-m.referenceTicker.C:
			if _, err := m.syncService.SyncReferenceData(context.Background(), m.userID); err != nil {
				log.Errorf("[JobManager] Scheduled reference sync failed: %v", err)
			}
		}
	}
}

func (m *Manager) backfillWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobManager] Backfill worker stopping")
			return
		case <-m.backfillTicker.C:
			if _, err := m.syncService.SyncMatterDetails(context.Background(), m.userID, nil); err != nil {
				log.Errorf("[JobManager] Scheduled detail backfill failed: %v", err)
			}
		}
	}
}

func (m *Manager) statsWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobManager] Stats worker stopping")
			return
		case <-m.statsTicker.C:
			if _, err := m.aggregator.RecomputeDashboardStats(m.userID); err != nil {
				log.Errorf("[JobManager] Dashboard recompute failed: %v", err)
			}
		}
	}
}
