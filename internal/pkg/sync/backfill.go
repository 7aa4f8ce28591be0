package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/internal/pkg/docketwise"
	"github.com/MatterDesk/MatterDesk/internal/pkg/notification"
)

const (
	// backfillBatchSize is how many stored matters are loaded and
	// walked per iteration.
	backfillBatchSize = 100

	// checkpointEvery bounds the work lost when a backfill run is
	// interrupted.
	checkpointEvery = 100
)

// SyncMatterDetails walks every synced matter newest-first and
// refreshes it from the detail endpoint. The walk runs at most once
// per calendar day and resumes from its checkpoint when interrupted
// on the same day. A rate limit that survives the single long retry
// persists the checkpoint and aborts instead of hammering the API.
func (s *Service) SyncMatterDetails(ctx context.Context, userID uint, onProgress func(Progress)) (*Summary, error) {
	progress, err := s.progress.Get(userID, models.SyncTypeMatterDetails)
	if err != nil {
		return nil, fmt.Errorf("load sync progress: %w", err)
	}

	now := s.now()
	if progress.CompletedToday(now) {
		log.Infof("[Backfill] Already completed today, skipping")
		return &Summary{}, nil
	}

	var cursor int64
	if progress.CheckpointFromToday(now) {
		cursor = progress.LastSyncedID
		log.Infof("[Backfill] Resuming below matter id %d", cursor)
	} else {
		progress.LastSyncedID = 0
	}

	progress.Status = models.SyncStatusSyncing
	progress.LastSyncDate = &now
	progress.FailureReason = ""
	if err := s.progress.Save(progress); err != nil {
		log.Warnf("[Backfill] Could not persist progress: %v", err)
	}

	total, err := s.matters.Count(userID)
	if err != nil {
		log.Warnf("[Backfill] Count failed, progress percent unavailable: %v", err)
		total = 0
	}

	maps, err := s.refCache.Load()
	if err != nil {
		s.failProgress(progress, err)
		return nil, fmt.Errorf("load reference maps: %w", err)
	}

	summary := &Summary{}
	sinceCheckpoint := 0

	checkpoint := func(lastID int64) {
		progress.LastSyncedID = lastID
		at := s.now()
		progress.LastSyncDate = &at
		if err := s.progress.Save(progress); err != nil {
			log.Warnf("[Backfill] Checkpoint save failed: %v", err)
		}
		if onProgress != nil {
			p := Progress{
				Processed:    summary.Processed,
				Failed:       summary.Failed,
				LastSyncedID: lastID,
			}
			if total > 0 {
				p.Percent = float64(summary.Processed) / float64(total) * 100
			}
			onProgress(p)
		}
	}

	for {
		stored, err := s.matters.ListForBackfill(userID, cursor, backfillBatchSize)
		if err != nil {
			s.failProgress(progress, err)
			return summary, fmt.Errorf("list matters for backfill: %w", err)
		}
		if len(stored) == 0 {
			break
		}

		for i := range stored {
			matter := &stored[i]
			if summary.Processed > 0 {
				s.sleep(docketwise.InterCallDelay)
			}

			payload, err := s.client.GetMatterSmart(ctx, matter.DocketwiseID)
			if err != nil {
				if errors.Is(err, docketwise.ErrRateLimited) {
					// Checkpoint above the failed record so tomorrow's
					// run (or a same-day restart) retries it.
					checkpoint(cursor)
					s.failProgress(progress, err)
					log.Warnf("[Backfill] Rate limited at matter %d, checkpointed and stopping", matter.DocketwiseID)
					return summary, err
				}
				log.Warnf("[Backfill] Detail fetch for matter %d failed: %v", matter.DocketwiseID, err)
				summary.Processed++
				summary.Failed++
				cursor = matter.DocketwiseID
				continue
			}

			oldStatus := matter.Status
			updated := *matter
			applyPayload(&updated, payload, maps)
			at := s.now()
			updated.LastSyncedAt = &at

			if err := s.matters.Update(&updated); err != nil {
				log.Warnf("[Backfill] Update of matter %d failed: %v", matter.ID, err)
				summary.Failed++
			} else {
				summary.Updated++
				if s.notifier != nil && updated.Status != oldStatus {
					if t := notification.DetectNotificationType(oldStatus, updated.Status); t != "" {
						s.notifier.Dispatch(notification.Data{
							Type:        t,
							MatterID:    matter.ID,
							MatterTitle: updated.Title,
							OldValue:    oldStatus,
							NewValue:    updated.Status,
						})
					}
				}
			}

			summary.Processed++
			cursor = matter.DocketwiseID
			sinceCheckpoint++
			if sinceCheckpoint >= checkpointEvery {
				checkpoint(cursor)
				sinceCheckpoint = 0
			}
		}
		checkpoint(cursor)
		sinceCheckpoint = 0
	}

	done := s.now()
	progress.Status = models.SyncStatusCompleted
	progress.LastSyncDate = &done
	progress.LastSyncedID = 0
	progress.TotalProcessed += summary.Processed
	progress.TotalFailed += summary.Failed
	if err := s.progress.Save(progress); err != nil {
		log.Warnf("[Backfill] Could not persist progress: %v", err)
	}

	s.invalidate()
	log.Infof("[Backfill] Done: %d processed, %d updated, %d failed", summary.Processed, summary.Updated, summary.Failed)
	return summary, nil
}
