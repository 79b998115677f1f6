package http

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReportCacheHitAndInvalidate(t *testing.T) {
	var hits, misses int
	c := newReportCache(8, time.Minute, func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	calls := 0
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get("acme", "metrics", compute)
		if err != nil || v.(int) != 1 {
			t.Fatalf("v=%v err=%v", v, err)
		}
	}
	if calls != 1 || hits != 2 || misses != 1 {
		t.Fatalf("calls=%d hits=%d misses=%d", calls, hits, misses)
	}

	c.Get("globex", "metrics", compute)
	c.Invalidate("acme")
	if v, _ := c.Get("acme", "metrics", compute); v.(int) != 3 {
		t.Fatalf("after invalidate v=%v", v)
	}
	if v, _ := c.Get("globex", "metrics", compute); v.(int) != 2 {
		t.Fatalf("other owner was invalidated, v=%v", v)
	}
}

func TestReportCacheDoesNotStoreErrors(t *testing.T) {
	c := newReportCache(8, time.Minute, nil)
	boom := errors.New("boom")
	if _, err := c.Get("acme", "k", func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	v, err := c.Get("acme", "k", func() (any, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Fatalf("v=%v err=%v", v, err)
	}
}

func TestReportCacheDropsResultRacingAnAppend(t *testing.T) {
	c := newReportCache(8, time.Minute, nil)
	_, _ = c.Get("acme", "k", func() (any, error) {
		c.Invalidate("acme")
		return "stale", nil
	})
	if c.lru.Size() != 0 {
		t.Fatal("result computed across an invalidation was cached")
	}
}

func TestReportCacheCoalescesConcurrentMisses(t *testing.T) {
	c := newReportCache(8, time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get("acme", "k", func() (any, error) {
				calls.Add(1)
				<-release
				return 1, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("calls=%d", n)
	}
	if c.lru.Size() != 1 {
		t.Fatalf("size=%d", c.lru.Size())
	}
}
