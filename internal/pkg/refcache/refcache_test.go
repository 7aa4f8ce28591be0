package refcache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MatterDesk/MatterDesk/app/models"
)

type fakeKV struct {
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(key string) (string, error) {
	val, ok := f.data[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return val, nil
}

func (f *fakeKV) Set(key string, value interface{}, _ time.Duration) error {
	f.data[key] = value.(string)
	return nil
}

type fakeRefs struct {
	members  []models.TeamMember
	contacts []models.Contact
	types    []models.MatterType
	statuses []models.MatterStatus
}

func (f *fakeRefs) UpsertTeamMember(*models.TeamMember) error     { return nil }
func (f *fakeRefs) UpsertContactBatch([]*models.Contact) error    { return nil }
func (f *fakeRefs) UpsertMatterType(*models.MatterType) error     { return nil }
func (f *fakeRefs) UpsertMatterStatus(*models.MatterStatus) error { return nil }
func (f *fakeRefs) AllTeamMembers() ([]models.TeamMember, error)  { return f.members, nil }
func (f *fakeRefs) ActiveTeamMembers() ([]models.TeamMember, error) {
	return f.members, nil
}
func (f *fakeRefs) AllContacts() ([]models.Contact, error)          { return f.contacts, nil }
func (f *fakeRefs) AllMatterTypes() ([]models.MatterType, error)    { return f.types, nil }
func (f *fakeRefs) AllMatterStatuses() ([]models.MatterStatus, error) { return f.statuses, nil }

func TestLoadFromCache(t *testing.T) {
	kv := newFakeKV()
	kv.data[KeyUsers] = `{"4":"Jane Doe"}`
	kv.data[KeyClients] = `{"11":"Acme Corp"}`
	kv.data[KeyTypes] = `{"2":"I-485"}`
	kv.data[KeyStatuses] = `{"7":"Filed"}`

	c := New(kv, &fakeRefs{})

	maps, err := c.Load()
	assert.NoError(t, err)
	assert.Equal(t, "Jane Doe", maps.Users[4])
	assert.Equal(t, "Acme Corp", maps.Clients[11])
	assert.Equal(t, "I-485", maps.Types[2])
	assert.Equal(t, "Filed", maps.Statuses[7])
}

func TestLoadFallsBackOnMiss(t *testing.T) {
	kv := newFakeKV()
	// Three of four maps cached; the missing one forces a full rebuild
	kv.data[KeyUsers] = `{"4":"Jane Doe"}`
	kv.data[KeyClients] = `{"11":"Acme Corp"}`
	kv.data[KeyTypes] = `{"2":"I-485"}`

	refs := &fakeRefs{
		members:  []models.TeamMember{{DocketwiseID: 4, Name: "Jane Roe"}},
		contacts: []models.Contact{{DocketwiseID: 11, Name: "Acme Corp"}},
		types:    []models.MatterType{{DocketwiseID: 2, Name: "I-485"}},
		statuses: []models.MatterStatus{{DocketwiseID: 7, Name: "Filed"}},
	}
	c := New(kv, refs)

	maps, err := c.Load()
	assert.NoError(t, err)
	// The rebuild sourced all maps from the relational store
	assert.Equal(t, "Jane Roe", maps.Users[4])
	assert.Equal(t, "Filed", maps.Statuses[7])

	// And re-primed the cache for the next load
	assert.Contains(t, kv.data, KeyStatuses)
}

func TestLoadFallsBackOnParseFailure(t *testing.T) {
	kv := newFakeKV()
	kv.data[KeyUsers] = `not json`
	kv.data[KeyClients] = `{}`
	kv.data[KeyTypes] = `{}`
	kv.data[KeyStatuses] = `{}`

	refs := &fakeRefs{
		members: []models.TeamMember{{DocketwiseID: 9, Name: "Sam Park"}},
	}
	c := New(kv, refs)

	maps, err := c.Load()
	assert.NoError(t, err)
	assert.Equal(t, "Sam Park", maps.Users[9])
}
