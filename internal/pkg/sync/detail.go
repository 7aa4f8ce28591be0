package sync

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/MatterDesk/MatterDesk/app/models"
)

// FetchMatterDetail returns one matter refreshed from the detail
// endpoint. Locally edited and local-only matters are served from the
// store without touching the API; a failed fetch also falls back to
// the stored row so the dashboard degrades instead of erroring.
func (s *Service) FetchMatterDetail(ctx context.Context, userID uint, matterID uint) (*models.Matter, error) {
	matter, err := s.matters.GetByID(matterID)
	if err != nil {
		return nil, fmt.Errorf("load matter %d: %w", matterID, err)
	}
	if matter.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	if matter.IsEdited || matter.IsLocalOnly() {
		return matter, nil
	}

	payload, err := s.client.GetMatter(ctx, matter.DocketwiseID)
	if err != nil {
		log.Warnf("[Sync] Live detail fetch for matter %d failed, serving stored row: %v", matter.DocketwiseID, err)
		return matter, nil
	}

	maps, err := s.refCache.Load()
	if err != nil {
		log.Warnf("[Sync] Reference maps unavailable, serving stored row: %v", err)
		return matter, nil
	}

	updated := *matter
	applyPayload(&updated, payload, maps)
	at := s.now()
	updated.LastSyncedAt = &at
	if err := s.matters.Update(&updated); err != nil {
		log.Warnf("[Sync] Persisting refreshed matter %d failed: %v", matter.ID, err)
		return matter, nil
	}
	return &updated, nil
}

// FetchMattersRealtime merges the live first page of the matter list
// over the stored rows: fresh external values where available, stored
// rows for edited matters and for everything past the first page. The
// merge is a read path and persists nothing.
func (s *Service) FetchMattersRealtime(ctx context.Context, userID uint) ([]models.Matter, error) {
	stored, err := s.matters.ListForDashboard(userID)
	if err != nil {
		return nil, fmt.Errorf("load stored matters: %w", err)
	}

	payloads, _, err := s.client.ListMatters(ctx, 1)
	if err != nil {
		log.Warnf("[Sync] Live list fetch failed, serving stored rows: %v", err)
		return stored, nil
	}

	maps, err := s.refCache.Load()
	if err != nil {
		log.Warnf("[Sync] Reference maps unavailable, serving stored rows: %v", err)
		return stored, nil
	}

	byExternalID := make(map[int64]int, len(stored))
	for i := range stored {
		byExternalID[stored[i].DocketwiseID] = i
	}

	for i := range payloads {
		payload := &payloads[i]
		idx, ok := byExternalID[payload.ID]
		if !ok {
			// Not yet synced; show it with a zero local id until the
			// next bulk sync persists it.
			fresh := models.Matter{UserID: userID}
			applyPayload(&fresh, payload, maps)
			stored = append(stored, fresh)
			continue
		}
		if stored[idx].IsEdited {
			continue
		}
		applyPayload(&stored[idx], payload, maps)
	}
	return stored, nil
}
