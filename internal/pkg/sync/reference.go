package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/internal/pkg/docketwise"
)

const (
	// maxUserPages and maxContactPages are hard caps so a runaway
	// pagination response cannot spin the job forever.
	maxUserPages    = 20
	maxContactPages = 50
)

// classifyTeamType infers the team classification from the email
// domain. Known-fragile heuristic; an explicit team-type field set at
// onboarding should replace it.
func classifyTeamType(email string) string {
	lowered := strings.ToLower(email)
	if strings.Contains(lowered, "@contractor") || strings.Contains(lowered, "@external") {
		return models.TeamTypeContractor
	}
	return models.TeamTypeInHouse
}

// SyncReferenceData refreshes statuses, matter types, users and
// contacts from Docketwise into the relational store and the reference
// cache. Each phase is isolated: one failing phase logs and the others
// still run. Designed for a 12-24h schedule, not interactive use.
func (s *Service) SyncReferenceData(ctx context.Context, userID uint) (int, error) {
	progress, err := s.progress.Get(userID, models.SyncTypeReference)
	if err != nil {
		return 0, fmt.Errorf("load sync progress: %w", err)
	}
	now := s.now()
	progress.Status = models.SyncStatusSyncing
	progress.LastSyncDate = &now
	progress.FailureReason = ""
	if err := s.progress.Save(progress); err != nil {
		log.Warnf("[ReferenceSync] Could not persist progress: %v", err)
	}

	total := 0
	statusMap := make(map[int64]string)
	var phaseErrs []string

	// Phase a: flat matter statuses
	if err := s.syncStatuses(ctx, statusMap, &total); err != nil {
		log.Errorf("[ReferenceSync] Status phase failed: %v", err)
		phaseErrs = append(phaseErrs, "statuses: "+err.Error())
	}

	// Phase b: matter types with their nested statuses
	if err := s.syncTypes(ctx, statusMap, &total); err != nil {
		log.Errorf("[ReferenceSync] Type phase failed: %v", err)
		phaseErrs = append(phaseErrs, "types: "+err.Error())
	}

	// Phase c: users
	if err := s.syncUsers(ctx, &total); err != nil {
		log.Errorf("[ReferenceSync] User phase failed: %v", err)
		phaseErrs = append(phaseErrs, "users: "+err.Error())
	}

	// Phase d: contacts
	if err := s.syncContacts(ctx, &total); err != nil {
		log.Errorf("[ReferenceSync] Contact phase failed: %v", err)
		phaseErrs = append(phaseErrs, "contacts: "+err.Error())
	}

	done := s.now()
	progress.LastSyncDate = &done
	progress.TotalProcessed += total
	if len(phaseErrs) > 0 {
		progress.Status = models.SyncStatusFailed
		progress.FailureReason = strings.Join(phaseErrs, "; ")
		progress.TotalFailed += len(phaseErrs)
	} else {
		progress.Status = models.SyncStatusCompleted
	}
	if err := s.progress.Save(progress); err != nil {
		log.Warnf("[ReferenceSync] Could not persist progress: %v", err)
	}

	log.Infof("[ReferenceSync] Done, %d records across %d failed phases of 4", total, len(phaseErrs))
	return total, nil
}

func (s *Service) syncStatuses(ctx context.Context, statusMap map[int64]string, total *int) error {
	statuses, err := s.client.ListMatterStatuses(ctx)
	if err != nil {
		return err
	}
	for _, status := range statuses {
		if err := s.refs.UpsertMatterStatus(&models.MatterStatus{
			DocketwiseID: status.ID,
			Name:         status.Name,
		}); err != nil {
			log.Warnf("[ReferenceSync] Upsert status %d failed: %v", status.ID, err)
			continue
		}
		statusMap[status.ID] = status.Name
		*total++
	}
	s.refCache.RefreshStatuses(statusMap)
	return nil
}

func (s *Service) syncTypes(ctx context.Context, statusMap map[int64]string, total *int) error {
	s.sleep(docketwise.InterCallDelay)
	types, err := s.client.ListMatterTypes(ctx)
	if err != nil {
		return err
	}

	typeMap := make(map[int64]string, len(types))
	for _, mt := range types {
		record := &models.MatterType{
			DocketwiseID: mt.ID,
			Name:         mt.Name,
		}
		if mt.FlatFee.Present() {
			record.FlatFee = mt.FlatFee.Value
		}
		if err := s.refs.UpsertMatterType(record); err != nil {
			log.Warnf("[ReferenceSync] Upsert type %d failed: %v", mt.ID, err)
			continue
		}
		typeMap[mt.ID] = mt.Name
		*total++

		// Nested statuses belong to their owning type
		for _, nested := range mt.Statuses {
			typeID := mt.ID
			if err := s.refs.UpsertMatterStatus(&models.MatterStatus{
				DocketwiseID: nested.ID,
				Name:         nested.Name,
				MatterTypeID: &typeID,
			}); err != nil {
				log.Warnf("[ReferenceSync] Upsert nested status %d failed: %v", nested.ID, err)
				continue
			}
			statusMap[nested.ID] = nested.Name
			*total++
		}
	}
	s.refCache.RefreshTypes(typeMap)
	s.refCache.RefreshStatuses(statusMap)
	return nil
}

func (s *Service) syncUsers(ctx context.Context, total *int) error {
	userMap := make(map[int64]string)
	page := 1
	for page <= maxUserPages {
		s.sleep(docketwise.InterCallDelay)
		users, pagination, err := s.client.ListUsers(ctx, page)
		if err != nil {
			return err
		}
		for _, user := range users {
			if err := s.refs.UpsertTeamMember(&models.TeamMember{
				DocketwiseID: user.ID,
				Name:         user.FullName(),
				Email:        user.Email,
				TeamType:     classifyTeamType(user.Email),
			}); err != nil {
				log.Warnf("[ReferenceSync] Upsert user %d failed: %v", user.ID, err)
				continue
			}
			userMap[user.ID] = user.FullName()
			*total++
		}
		if !hasMore(pagination, len(users)) {
			break
		}
		page++
	}
	s.refCache.RefreshUsers(userMap)
	return nil
}

func (s *Service) syncContacts(ctx context.Context, total *int) error {
	clientMap := make(map[int64]string)
	page := 1
	for page <= maxContactPages {
		s.sleep(docketwise.InterCallDelay)
		contacts, pagination, err := s.client.ListContacts(ctx, page)
		if err != nil {
			return err
		}
		batch := make([]*models.Contact, 0, len(contacts))
		for _, contact := range contacts {
			batch = append(batch, &models.Contact{
				DocketwiseID: contact.ID,
				Name:         contact.DisplayName(),
				Email:        contact.Email,
			})
			clientMap[contact.ID] = contact.DisplayName()
		}
		if len(batch) > 0 {
			if err := s.refs.UpsertContactBatch(batch); err != nil {
				log.Warnf("[ReferenceSync] Contact batch on page %d failed: %v", page, err)
			} else {
				*total += len(batch)
			}
		}
		if !hasMore(pagination, len(contacts)) {
			break
		}
		page++
	}
	s.refCache.RefreshClients(clientMap)
	return nil
}
