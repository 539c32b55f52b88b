package cache

import (
	"testing"
	"time"

	"docqa/internal/domain"
)

func answer(text string) domain.Answer {
	return domain.Answer{Answer: text, Sources: []domain.Source{{Content: "c", Page: 1, FileID: 1}}}
}

func TestAnswerCacheHitAndMiss(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)

	if _, ok := c.Get(1, "q", 5); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put(1, "q", 5, 0, answer("a"))
	got, ok := c.Get(1, "q", 5)
	if !ok || got.Answer != "a" {
		t.Fatalf("expected hit with answer a, got %v %v", got, ok)
	}

	if _, ok := c.Get(2, "q", 5); ok {
		t.Error("answers must not leak across projects")
	}
	if _, ok := c.Get(1, "q", 3); ok {
		t.Error("different top k must miss")
	}
}

func TestAnswerCacheReturnsCopies(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)
	c.Put(1, "q", 5, 0, answer("a"))

	got, _ := c.Get(1, "q", 5)
	got.Sources[0].Page = 99

	again, _ := c.Get(1, "q", 5)
	if again.Sources[0].Page != 1 {
		t.Error("cached answer was mutated through a returned copy")
	}
}

func TestAnswerCacheInvalidateProject(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)
	c.Put(1, "q", 5, 0, answer("one"))
	c.Put(2, "q", 5, 0, answer("two"))

	c.InvalidateProject(1)

	if _, ok := c.Get(1, "q", 5); ok {
		t.Error("project 1 should be invalidated")
	}
	if _, ok := c.Get(2, "q", 5); !ok {
		t.Error("project 2 should be untouched")
	}
	if c.Size() != 1 {
		t.Errorf("expected size 1, got %d", c.Size())
	}

	c.Put(1, "q", 5, c.Generation(1), answer("fresh"))
	if got, ok := c.Get(1, "q", 5); !ok || got.Answer != "fresh" {
		t.Error("expected fresh answer after invalidation")
	}
}

func TestAnswerCacheDropsAnswersFromOlderGeneration(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)

	gen := c.Generation(1)
	c.InvalidateProject(1) // the project changed while the answer was computed
	c.Put(1, "q", 5, gen, answer("stale"))

	if _, ok := c.Get(1, "q", 5); ok {
		t.Error("answer computed before the change must not be cached")
	}
	if c.Size() != 0 {
		t.Errorf("expected empty cache, got size %d", c.Size())
	}
	if c.Generation(1) != gen+1 {
		t.Errorf("expected generation %d, got %d", gen+1, c.Generation(1))
	}
}

func TestAnswerCacheTTL(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put(1, "q", 5, 0, answer("a"))
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get(1, "q", 5); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be dropped, size %d", c.Size())
	}
}

func TestAnswerCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewAnswerCache(2, time.Minute)
	c.Put(1, "a", 5, 0, answer("a"))
	c.Put(1, "b", 5, 0, answer("b"))

	c.Get(1, "a", 5) // a is now most recent
	c.Put(1, "c", 5, 0, answer("c"))

	if _, ok := c.Get(1, "b", 5); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get(1, "a", 5); !ok {
		t.Error("a should still be cached")
	}
	if _, ok := c.Get(1, "c", 5); !ok {
		t.Error("c should be cached")
	}
}
