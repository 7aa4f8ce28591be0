package sync

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/internal/pkg/docketwise"
	"github.com/MatterDesk/MatterDesk/internal/pkg/refcache"
)

// applyPayload maps a Docketwise payload onto a matter record. Fields
// whose key was entirely absent from the payload keep their stored
// value: the API ships partial payloads under load, and overwriting
// with blanks would lose data and raise phantom notifications.
func applyPayload(matter *models.Matter, payload *docketwise.Matter, maps *refcache.Maps) {
	matter.DocketwiseID = payload.ID

	if payload.Title.Present() {
		matter.Title = payload.Title.Value
	}
	if payload.Description.Present() {
		matter.Description = payload.Description.Value
	}

	resolveAssignees(matter, payload, maps)
	resolveClient(matter, payload, maps)
	resolveType(matter, payload, maps)
	resolveStatus(matter, payload, maps)
	resolveFilingStatus(matter, payload, maps)

	if payload.BillingStatus.Present() {
		matter.BillingStatus = payload.BillingStatus.Value
	}
	if payload.TotalHours.Present() {
		matter.TotalHours = payload.TotalHours.Value
	}
	if payload.FlatFee.Present() {
		matter.FlatFee = payload.FlatFee.Value
	}
	if payload.Archived.Set {
		matter.IsArchived = payload.Archived.Valid && payload.Archived.Value
	}

	applyDate(&matter.DocketwiseCreatedAt, payload.CreatedAt)
	applyDate(&matter.DocketwiseUpdatedAt, payload.UpdatedAt)
	applyDate(&matter.OpenedAt, payload.OpenedAt)
	applyDate(&matter.ClosedAt, payload.ClosedAt)
	applyDate(&matter.EstimatedDeadline, payload.EstimatedDeadline)
	applyDate(&matter.ActualDeadline, payload.ActualDeadline)
}

// resolveAssignees unions attorney_id and user_ids, deduplicated with
// the attorney first, and maps the ids through the user cache into a
// joined display string. Both keys absent preserves the stored value.
func resolveAssignees(matter *models.Matter, payload *docketwise.Matter, maps *refcache.Maps) {
	if !payload.AttorneyID.Set && !payload.UserIDs.Set {
		return
	}

	var ids []int64
	seen := make(map[int64]bool)
	if payload.AttorneyID.Present() && payload.AttorneyID.Value != 0 {
		ids = append(ids, payload.AttorneyID.Value)
		seen[payload.AttorneyID.Value] = true
	}
	if payload.UserIDs.Present() {
		for _, id := range payload.UserIDs.Value {
			if id != 0 && !seen[id] {
				ids = append(ids, id)
				seen[id] = true
			}
		}
	}

	matter.SetAssigneeIDs(ids)

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := maps.Users[id]; ok && name != "" {
			names = append(names, name)
		} else {
			log.Warnf("[Sync] Unknown assignee id %d on matter %d", id, payload.ID)
		}
	}
	matter.Assignees = strings.Join(names, ", ")
}

// resolveClient prefers the embedded client object and falls back to
// a client-id lookup through the cache.
func resolveClient(matter *models.Matter, payload *docketwise.Matter, maps *refcache.Maps) {
	if payload.Client.Present() && payload.Client.Value.Name != "" {
		id := payload.Client.Value.ID
		matter.ClientID = &id
		matter.ClientName = payload.Client.Value.Name
		return
	}
	if payload.ClientID.Present() {
		id := payload.ClientID.Value
		matter.ClientID = &id
		if name, ok := maps.Clients[id]; ok {
			matter.ClientName = name
		} else {
			log.Warnf("[Sync] Unknown client id %d on matter %d", id, payload.ID)
		}
	}
}

// resolveType resolves the matter type: embedded object, then id
// lookup. If neither type key appeared in the payload at all, the
// stored value is preserved untouched.
func resolveType(matter *models.Matter, payload *docketwise.Matter, maps *refcache.Maps) {
	if !payload.MatterType.Set && !payload.MatterTypeID.Set {
		return
	}

	if payload.MatterType.Present() && payload.MatterType.Value.Name != "" {
		id := payload.MatterType.Value.ID
		matter.MatterTypeID = &id
		matter.MatterType = payload.MatterType.Value.Name
		return
	}
	if payload.MatterTypeID.Present() {
		id := payload.MatterTypeID.Value
		matter.MatterTypeID = &id
		if name, ok := maps.Types[id]; ok {
			matter.MatterType = name
		}
	}
}

// resolveStatus resolves the workflow stage: embedded object, id
// lookup, then the raw string. Absent keys preserve the stored value.
// This touches only the status axis, never statusForFiling.
func resolveStatus(matter *models.Matter, payload *docketwise.Matter, maps *refcache.Maps) {
	id, name, ok := resolveStatusAxis(payload.Status, payload.StatusID, maps)
	if !ok {
		return
	}
	matter.StatusID = id
	matter.Status = name
}

// resolveFilingStatus resolves the filing-status axis with the same
// rules as resolveStatus, independently of the workflow stage.
func resolveFilingStatus(matter *models.Matter, payload *docketwise.Matter, maps *refcache.Maps) {
	id, name, ok := resolveStatusAxis(payload.StatusForFiling, payload.StatusForFilingID, maps)
	if !ok {
		return
	}
	matter.StatusForFilingID = id
	matter.StatusForFiling = name
}

func resolveStatusAxis(value docketwise.Field[docketwise.StatusValue], idField docketwise.Field[int64], maps *refcache.Maps) (*int64, string, bool) {
	if !value.Set && !idField.Set {
		return nil, "", false
	}

	// Embedded object first
	if value.Present() && value.Value.ID != 0 {
		id := value.Value.ID
		name := value.Value.Name
		if name == "" {
			name = maps.Statuses[id]
		}
		return &id, name, true
	}

	// Then the id lookup
	if idField.Present() {
		id := idField.Value
		if name, ok := maps.Statuses[id]; ok {
			return &id, name, true
		}
		if value.Present() && value.Value.Name != "" {
			return &id, value.Value.Name, true
		}
		log.Warnf("[Sync] Unknown status id %d", id)
		return &id, strconv.FormatInt(id, 10), true
	}

	// Finally the raw string form
	if value.Present() && value.Value.Name != "" {
		return nil, value.Value.Name, true
	}

	// Keys present but both null: treat like an explicit clear being
	// ignored, preserving the stored value
	return nil, "", false
}

// applyDate parses an API timestamp into the destination. An absent
// key preserves the stored value; an explicit null or empty string
// clears it, since that is how a removed deadline arrives.
func applyDate(dest **time.Time, field docketwise.Field[string]) {
	if !field.Set {
		return
	}
	if !field.Valid || field.Value == "" {
		*dest = nil
		return
	}
	parsed := parseAPITime(field.Value)
	if parsed == nil {
		log.Warnf("[Sync] Unparseable timestamp %q", field.Value)
		return
	}
	*dest = parsed
}

// parseAPITime accepts the timestamp layouts Docketwise has been seen
// to return.
func parseAPITime(value string) *time.Time {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z07:00",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
