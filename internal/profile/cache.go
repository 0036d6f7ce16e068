package profile

import (
	"container/list"
	"sync"
	"time"

	"github.com/example/learnengine/pkg/models"
)

// ProfileCache stores profiles by user ID. Implementations must be safe for concurrent use.
// The repository stores and reads clones, so implementations may keep the pointers they get.
type ProfileCache interface {
	Get(userID string) (*models.CognitiveProfile, bool)
	Set(userID string, profile *models.CognitiveProfile)
	Delete(userID string)
	Clear()
	Len() int
}

// MapCache is an unbounded cache with no eviction. Entries live until deleted.
type MapCache struct {
	mu      sync.RWMutex
	entries map[string]*models.CognitiveProfile
}

// NewMapCache creates an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string]*models.CognitiveProfile)}
}

func (c *MapCache) Get(userID string) (*models.CognitiveProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[userID]
	return p, ok
}

func (c *MapCache) Set(userID string, profile *models.CognitiveProfile) {
	c.mu.Lock()
	c.entries[userID] = profile
	c.mu.Unlock()
}

func (c *MapCache) Delete(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func (c *MapCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*models.CognitiveProfile)
	c.mu.Unlock()
}

func (c *MapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTLCache is a bounded LRU cache whose entries also expire after a fixed TTL.
//
// Thread Safety:
//
//	Safe for concurrent use; a single mutex guards the map and the LRU list.
type TTLCache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

type ttlEntry struct {
	userID   string
	profile  *models.CognitiveProfile
	storedAt time.Time
}

// NewTTLCache creates a TTLCache. capacity <= 0 means unbounded; ttl <= 0 disables expiry.
func NewTTLCache(capacity int, ttl time.Duration) *TTLCache {
	return &TTLCache{
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *TTLCache) Get(userID string) (*models.CognitiveProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	e := el.Value.(*ttlEntry)
	if c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl {
		c.removeElement(el)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return e.profile, true
}

func (c *TTLCache) Set(userID string, profile *models.CognitiveProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[userID]; ok {
		e := el.Value.(*ttlEntry)
		e.profile = profile
		e.storedAt = c.now()
		c.lru.MoveToFront(el)
		return
	}

	el := c.lru.PushFront(&ttlEntry{userID: userID, profile: profile, storedAt: c.now()})
	c.entries[userID] = el
	for c.capacity > 0 && c.lru.Len() > c.capacity {
		c.removeElement(c.lru.Back())
	}
}

func (c *TTLCache) Delete(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[userID]; ok {
		c.removeElement(el)
	}
}

func (c *TTLCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.mu.Unlock()
}

func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// removeElement must be called with mu held.
func (c *TTLCache) removeElement(el *list.Element) {
	e := c.lru.Remove(el).(*ttlEntry)
	delete(c.entries, e.userID)
}
