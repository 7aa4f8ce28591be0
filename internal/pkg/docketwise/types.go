package docketwise

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field is a three-state JSON value: a key can be present with a
// value, present but null, or entirely absent from the payload. The
// sync layer needs the distinction because Docketwise sometimes ships
// partial payloads under load, and an absent key must preserve the
// locally stored value instead of blanking it.
type Field[T any] struct {
	Value T
	Set   bool // key was present in the payload
	Valid bool // value was non-null
}

// UnmarshalJSON is only invoked for keys present in the payload, so
// an untouched Field stays Set=false.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &f.Value); err != nil {
		return err
	}
	f.Valid = true
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Present reports whether the field carries a usable value.
func (f Field[T]) Present() bool {
	return f.Set && f.Valid
}

// NamedRef is an embedded reference object ({"id": 7, "name": "..."}).
type NamedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// StatusValue accepts either an embedded status object or a bare
// string, which is all the matter endpoints have been observed to
// return for status fields.
type StatusValue struct {
	ID   int64
	Name string
}

func (s *StatusValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "\"") {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		s.Name = raw
		return nil
	}
	var ref NamedRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return err
	}
	s.ID = ref.ID
	s.Name = ref.Name
	return nil
}

func (s StatusValue) MarshalJSON() ([]byte, error) {
	if s.ID == 0 && s.Name != "" {
		return json.Marshal(s.Name)
	}
	return json.Marshal(NamedRef{ID: s.ID, Name: s.Name})
}

// Matter is the matter payload. The list endpoint returns a subset;
// the detail endpoint additionally fills assignees, workflow stage and
// the full description.
type Matter struct {
	ID          int64         `json:"id"`
	Title       Field[string] `json:"title"`
	Description Field[string] `json:"description"`

	ClientID Field[int64]    `json:"client_id"`
	Client   Field[NamedRef] `json:"client"`

	MatterTypeID Field[int64]    `json:"matter_type_id"`
	MatterType   Field[NamedRef] `json:"matter_type"`

	StatusID Field[int64]       `json:"status_id"`
	Status   Field[StatusValue] `json:"status"`

	StatusForFilingID Field[int64]       `json:"status_for_filing_id"`
	StatusForFiling   Field[StatusValue] `json:"status_for_filing"`

	AttorneyID Field[int64]   `json:"attorney_id"`
	UserIDs    Field[[]int64] `json:"user_ids"`

	BillingStatus Field[string]  `json:"billing_status"`
	TotalHours    Field[float64] `json:"total_hours"`
	FlatFee       Field[float64] `json:"flat_fee"`

	CreatedAt         Field[string] `json:"created_at"`
	UpdatedAt         Field[string] `json:"updated_at"`
	OpenedAt          Field[string] `json:"opened_at"`
	ClosedAt          Field[string] `json:"closed_at"`
	EstimatedDeadline Field[string] `json:"estimated_deadline"`
	ActualDeadline    Field[string] `json:"actual_deadline"`

	Archived Field[bool] `json:"archived"`
}

// User is the Docketwise user payload.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// FullName joins first and last name, tolerating either being empty.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Contact is the Docketwise contact payload.
type Contact struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// DisplayName prefers the combined name field, falling back to
// first/last and finally the email address.
func (c Contact) DisplayName() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(c.FirstName + " " + c.LastName); n != "" {
		return n
	}
	return c.Email
}

// MatterTypePayload is a matter type with its nested status list.
type MatterTypePayload struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	FlatFee  Field[float64] `json:"flat_fee"`
	Statuses []StatusRef    `json:"statuses"`
}

// StatusRef is a matter status row from the statuses endpoint or a
// type's nested status list.
type StatusRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Pagination mirrors the X-Pagination response header:
// {"total":N,"next_page":N,"previous_page":N,"total_pages":N}.
type Pagination struct {
	Total        int  `json:"total"`
	NextPage     *int `json:"next_page"`
	PreviousPage *int `json:"previous_page"`
	TotalPages   int  `json:"total_pages"`
}

// HasNext reports whether another page exists. When the header was
// missing entirely, the caller falls back to the page-is-full rule.
func (p *Pagination) HasNext() bool {
	return p != nil && p.NextPage != nil && *p.NextPage > 0
}

// parsePagination decodes the X-Pagination header; a missing or
// malformed header yields nil without error.
func parsePagination(header string) *Pagination {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	var p Pagination
	if err := json.Unmarshal([]byte(header), &p); err != nil {
		return nil
	}
	return &p
}

// APIError is a non-2xx response that is not a rate limit.
type APIError struct {
	Status int
	Path   string
}

func (e *APIError) Error() string {
	return "docketwise: HTTP " + strconv.Itoa(e.Status) + " for " + e.Path
}
