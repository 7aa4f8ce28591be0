package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/internal/pkg/docketwise"
	"github.com/MatterDesk/MatterDesk/internal/pkg/notification"
	"github.com/MatterDesk/MatterDesk/internal/pkg/refcache"
)

const (
	// maxMatterPages caps one bulk sync at 20 pages of 200 records.
	maxMatterPages = 20

	// matterBatchSize is the transactional write chunk.
	matterBatchSize = 50

	// upsertTimeout bounds one batch transaction.
	upsertTimeout = 60 * time.Second
)

// SyncMatters runs the bulk matter sync: page through the list
// endpoint, fetch details for records that need them, and upsert in
// transactional batches. Matters edited locally only get their
// LastSyncedAt touched; everything else on them is preserved.
func (s *Service) SyncMatters(ctx context.Context, userID uint) (*Summary, error) {
	progress, err := s.progress.Get(userID, models.SyncTypeMatters)
	if err != nil {
		return nil, fmt.Errorf("load sync progress: %w", err)
	}
	started := s.now()
	progress.Status = models.SyncStatusSyncing
	progress.LastSyncDate = &started
	progress.FailureReason = ""
	if err := s.progress.Save(progress); err != nil {
		log.Warnf("[MatterSync] Could not persist progress: %v", err)
	}

	maps, err := s.refCache.Load()
	if err != nil {
		s.failProgress(progress, err)
		return nil, fmt.Errorf("load reference maps: %w", err)
	}

	notify := false
	if s.notifier != nil {
		configured, err := s.notifier.HasConfiguredRecipients()
		if err != nil {
			log.Warnf("[MatterSync] Recipient check failed, skipping notifications: %v", err)
		} else {
			notify = configured
		}
	}

	summary := &Summary{}
	batch := make([]*models.Matter, 0, matterBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.matters.UpsertBatch(ctx, userID, batch, upsertTimeout); err != nil {
			log.Errorf("[MatterSync] Batch of %d failed: %v", len(batch), err)
			summary.Failed += len(batch)
		}
		batch = batch[:0]
	}

	page := 1
	for page <= maxMatterPages {
		if page > 1 {
			s.sleep(docketwise.InterCallDelay)
		}
		payloads, pagination, err := s.client.ListMatters(ctx, page)
		if err != nil {
			flush()
			s.failProgress(progress, err)
			return summary, fmt.Errorf("list matters page %d: %w", page, err)
		}

		for i := range payloads {
			payload := &payloads[i]
			created, skipped, failed := s.syncOne(ctx, userID, payload, maps, notify, &batch)
			summary.Processed++
			switch {
			case failed:
				summary.Failed++
			case skipped:
				summary.Skipped++
			case created:
				summary.Created++
			default:
				summary.Updated++
			}
			if len(batch) >= matterBatchSize {
				flush()
			}
		}

		if !hasMore(pagination, len(payloads)) {
			break
		}
		page++
	}
	flush()

	done := s.now()
	progress.Status = models.SyncStatusCompleted
	progress.LastSyncDate = &done
	progress.TotalProcessed += summary.Processed
	progress.TotalFailed += summary.Failed
	if err := s.progress.Save(progress); err != nil {
		log.Warnf("[MatterSync] Could not persist progress: %v", err)
	}

	s.invalidate()
	log.Infof("[MatterSync] Done: %d processed, %d created, %d updated, %d skipped, %d failed",
		summary.Processed, summary.Created, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

// syncOne prepares one matter record for the write batch. Returns
// (created, skipped, failed).
func (s *Service) syncOne(ctx context.Context, userID uint, payload *docketwise.Matter, maps *refcache.Maps, notify bool, batch *[]*models.Matter) (bool, bool, bool) {
	existing, err := s.matters.GetByDocketwiseID(userID, payload.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[MatterSync] Lookup of matter %d failed: %v", payload.ID, err)
		return false, false, true
	}

	now := s.now()
	if existing != nil && existing.IsEdited {
		if err := s.matters.TouchLastSyncedAt(existing.ID, now); err != nil {
			log.Warnf("[MatterSync] Touch on edited matter %d failed: %v", existing.ID, err)
		}
		return false, true, false
	}

	if s.needsDetail(existing, payload) {
		s.sleep(docketwise.InterCallDelay)
		detail, err := s.client.GetMatter(ctx, payload.ID)
		if err != nil {
			// Fall back to the thinner list payload
			log.Warnf("[MatterSync] Detail fetch for matter %d failed: %v", payload.ID, err)
		} else {
			payload = detail
		}
	}

	var record *models.Matter
	var oldFiling string
	if existing != nil {
		copied := *existing
		record = &copied
		oldFiling = existing.StatusForFiling
	} else {
		record = &models.Matter{UserID: userID}
	}

	applyPayload(record, payload, maps)
	record.LastSyncedAt = &now
	*batch = append(*batch, record)

	// Filing-status transitions on already-known matters raise the
	// milestone notifications (RFE, approval, denial).
	if notify && existing != nil && record.StatusForFiling != oldFiling {
		if t := notification.DetectNotificationType(oldFiling, record.StatusForFiling); t != "" {
			s.notifier.Dispatch(notification.Data{
				Type:        t,
				MatterID:    existing.ID,
				MatterTitle: record.Title,
				OldValue:    oldFiling,
				NewValue:    record.StatusForFiling,
			})
		}
	}

	return existing == nil, false, false
}

// needsDetail decides whether the list payload is enough or the
// record warrants a per-matter detail fetch.
func (s *Service) needsDetail(existing *models.Matter, payload *docketwise.Matter) bool {
	if existing == nil {
		return true
	}
	if payload.UpdatedAt.Present() {
		if remote := parseAPITime(payload.UpdatedAt.Value); remote != nil {
			if existing.DocketwiseUpdatedAt == nil || remote.After(*existing.DocketwiseUpdatedAt) {
				return true
			}
		}
	}
	return existing.AssigneeIDs == "" || existing.Status == "" ||
		existing.MatterType == "" || existing.ClientName == ""
}

// failProgress marks the progress row failed with the given cause.
func (s *Service) failProgress(progress *models.SyncProgress, cause error) {
	progress.Status = models.SyncStatusFailed
	progress.FailureReason = cause.Error()
	if err := s.progress.Save(progress); err != nil {
		log.Warnf("[Sync] Could not persist failed progress: %v", err)
	}
}
