package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"docqa/internal/domain"
)

// AnswerCache is an LRU of composed answers keyed by project and question.
// Each project has its own generation counter; bumping it drops that
// project's answers without touching other projects.
type AnswerCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gens    map[int64]uint64
	now     func() time.Time
}

type cacheEntry struct {
	projectID int64
	answer    domain.Answer
	timestamp time.Time
	gen       uint64
}

func NewAnswerCache(maxSize int, ttl time.Duration) *AnswerCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnswerCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		gens:    make(map[int64]uint64),
		now:     time.Now,
	}
}

func cacheKey(projectID int64, question string, topK int) string {
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(projectID))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(topK))
	h := sha256.New()
	h.Write(hdr[:])
	h.Write([]byte(question))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *AnswerCache) Get(projectID int64, question string, topK int) (domain.Answer, bool) {
	key := cacheKey(projectID, question, topK)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return domain.Answer{}, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.gen != c.gens[projectID] {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return domain.Answer{}, false
	}

	c.moveToEnd(key)
	return copyAnswer(entry.answer), true
}

// Generation returns the project's current generation. Read it before loading
// the index an answer is computed from and pass it to Put.
func (c *AnswerCache) Generation(projectID int64) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[projectID]
}

// Put stores an answer computed from the project state at generation gen.
// The answer is dropped if the project changed since then.
func (c *AnswerCache) Put(projectID int64, question string, topK int, gen uint64, answer domain.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gens[projectID] {
		return
	}

	key := cacheKey(projectID, question, topK)
	entry := &cacheEntry{
		projectID: projectID,
		answer:    copyAnswer(answer),
		timestamp: c.now(),
		gen:       gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// InvalidateProject drops every cached answer for the project.
func (c *AnswerCache) InvalidateProject(projectID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[projectID]++
	kept := c.order[:0]
	for _, key := range c.order {
		if c.entries[key].projectID == projectID {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}

func (c *AnswerCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *AnswerCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *AnswerCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *AnswerCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func copyAnswer(a domain.Answer) domain.Answer {
	out := domain.Answer{Answer: a.Answer}
	if a.Sources != nil {
		out.Sources = append([]domain.Source(nil), a.Sources...)
	}
	return out
}
