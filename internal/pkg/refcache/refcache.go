package refcache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/app/repository"
	"github.com/MatterDesk/MatterDesk/internal/pkg/cache"
)

const (
	KeyUsers    = "refdata:users"
	KeyClients  = "refdata:clients"
	KeyTypes    = "refdata:matter_types"
	KeyStatuses = "refdata:matter_statuses"

	// Expiration matches the reference sync cadence; a stale map is
	// rebuilt from the relational store on the next load.
	Expiration = 24 * time.Hour
)

// KV is the subset of the cache layer the reference cache needs,
// injectable for tests.
type KV interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
}

// cacheKV adapts the package-level cache helpers.
type cacheKV struct{}

func (cacheKV) Get(key string) (string, error) { return cache.Get(key) }
func (cacheKV) Set(key string, value interface{}, expiration time.Duration) error {
	return cache.Set(key, value, expiration)
}

// Maps holds the four id→name lookup maps the sync jobs resolve
// references through.
type Maps struct {
	Users    map[int64]string
	Clients  map[int64]string
	Types    map[int64]string
	Statuses map[int64]string
}

// Cache loads and refreshes the reference lookup maps. It never calls
// the external API: a cache miss falls back to the relational store.
type Cache struct {
	kv   KV
	refs repository.ReferenceRepository
}

// New creates a reference cache with an explicit KV backend.
func New(kv KV, refs repository.ReferenceRepository) *Cache {
	return &Cache{kv: kv, refs: refs}
}

// NewDefault creates a reference cache backed by the shared cache client.
func NewDefault(refs repository.ReferenceRepository) *Cache {
	return New(cacheKV{}, refs)
}

// Load returns all four lookup maps. Any single miss or parse failure
// rebuilds all four from the relational store and re-primes the cache,
// so callers always get a consistent set.
func (c *Cache) Load() (*Maps, error) {
	maps := &Maps{}
	keys := []struct {
		key  string
		dest *map[int64]string
	}{
		{KeyUsers, &maps.Users},
		{KeyClients, &maps.Clients},
		{KeyTypes, &maps.Types},
		{KeyStatuses, &maps.Statuses},
	}

	for _, entry := range keys {
		raw, err := c.kv.Get(entry.key)
		if err != nil {
			return c.rebuild()
		}
		if err := json.Unmarshal([]byte(raw), entry.dest); err != nil {
			log.Warnf("[RefCache] Unparseable cache entry %s, rebuilding: %v", entry.key, err)
			return c.rebuild()
		}
	}
	return maps, nil
}

// rebuild loads all four maps from the relational store and writes
// them back to the cache.
func (c *Cache) rebuild() (*Maps, error) {
	maps := &Maps{
		Users:    make(map[int64]string),
		Clients:  make(map[int64]string),
		Types:    make(map[int64]string),
		Statuses: make(map[int64]string),
	}

	members, err := c.refs.AllTeamMembers()
	if err != nil {
		return nil, fmt.Errorf("rebuild user map: %w", err)
	}
	for _, m := range members {
		maps.Users[m.DocketwiseID] = m.Name
	}

	contacts, err := c.refs.AllContacts()
	if err != nil {
		return nil, fmt.Errorf("rebuild client map: %w", err)
	}
	for _, contact := range contacts {
		maps.Clients[contact.DocketwiseID] = contact.Name
	}

	types, err := c.refs.AllMatterTypes()
	if err != nil {
		return nil, fmt.Errorf("rebuild type map: %w", err)
	}
	for _, mt := range types {
		maps.Types[mt.DocketwiseID] = mt.Name
	}

	statuses, err := c.refs.AllMatterStatuses()
	if err != nil {
		return nil, fmt.Errorf("rebuild status map: %w", err)
	}
	for _, ms := range statuses {
		maps.Statuses[ms.DocketwiseID] = ms.Name
	}

	c.refreshAll(maps)
	return maps, nil
}

func (c *Cache) refreshAll(maps *Maps) {
	c.refresh(KeyUsers, maps.Users)
	c.refresh(KeyClients, maps.Clients)
	c.refresh(KeyTypes, maps.Types)
	c.refresh(KeyStatuses, maps.Statuses)
}

func (c *Cache) refresh(key string, m map[int64]string) {
	data, err := json.Marshal(m)
	if err != nil {
		log.Errorf("[RefCache] Failed to marshal %s: %v", key, err)
		return
	}
	if err := c.kv.Set(key, string(data), Expiration); err != nil {
		log.Warnf("[RefCache] Failed to refresh %s: %v", key, err)
	}
}

// RefreshUsers overwrites the user map after a successful external fetch.
func (c *Cache) RefreshUsers(m map[int64]string) { c.refresh(KeyUsers, m) }

// RefreshClients overwrites the client map after a successful external fetch.
func (c *Cache) RefreshClients(m map[int64]string) { c.refresh(KeyClients, m) }

// RefreshTypes overwrites the matter-type map after a successful external fetch.
func (c *Cache) RefreshTypes(m map[int64]string) { c.refresh(KeyTypes, m) }

// RefreshStatuses overwrites the status map after a successful external fetch.
func (c *Cache) RefreshStatuses(m map[int64]string) { c.refresh(KeyStatuses, m) }
