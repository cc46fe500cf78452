package thumbnail

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/markview/internal/viewer/viewertest"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnsure_CapsAtTenPages(t *testing.T) {
	v := viewertest.New(25)
	c := New(v, quietLog(), Config{}, nil)

	n := c.Ensure(context.Background(), 25)
	if n != 10 {
		t.Fatalf("expected 10 thumbnails generated, got %d", n)
	}
	for page := 1; page <= 10; page++ {
		if _, ok := c.Get(page); !ok {
			t.Errorf("expected page %d to be cached", page)
		}
		if got := v.RasterizeCount(page); got != 1 {
			t.Errorf("page %d: expected 1 rasterization, got %d", page, got)
		}
	}
	if got := v.RasterizeCount(11); got != 0 {
		t.Errorf("expected page 11 never requested, got %d requests", got)
	}
}

func TestEnsure_Sequential(t *testing.T) {
	v := viewertest.New(4)
	c := New(v, quietLog(), Config{}, nil)
	c.Ensure(context.Background(), 4)

	calls := v.CallsTo("RasterizePage")
	for i, call := range calls {
		if call.Arg != i+1 {
			t.Errorf("call %d: expected page %d, got %v", i, i+1, call.Arg)
		}
	}
}

func TestEnsure_IdempotentSecondCall(t *testing.T) {
	v := viewertest.New(25)
	c := New(v, quietLog(), Config{}, nil)
	c.Ensure(context.Background(), 25)
	v.Reset()

	if n := c.Ensure(context.Background(), 25); n != 0 {
		t.Errorf("expected 0 generated on second call, got %d", n)
	}
	if calls := len(v.CallsTo("RasterizePage")); calls != 0 {
		t.Errorf("expected zero new rasterization requests, got %d", calls)
	}
}

func TestEnsure_FewerPagesThanCap(t *testing.T) {
	v := viewertest.New(3)
	c := New(v, quietLog(), Config{}, nil)
	if n := c.Ensure(context.Background(), 3); n != 3 {
		t.Errorf("expected 3 generated, got %d", n)
	}
	if n := c.Ensure(context.Background(), 0); n != 0 {
		t.Errorf("expected 0 generated for empty document, got %d", n)
	}
}

func TestEnsure_FailureIsolatedPerPage(t *testing.T) {
	v := viewertest.New(5)
	v.FailRasterize[3] = true
	c := New(v, quietLog(), Config{}, nil)

	if n := c.Ensure(context.Background(), 5); n != 4 {
		t.Fatalf("expected 4 generated, got %d", n)
	}
	if _, ok := c.Get(3); ok {
		t.Error("expected failed page to stay absent")
	}
	for _, page := range []int{1, 2, 4, 5} {
		if _, ok := c.Get(page); !ok {
			t.Errorf("expected page %d to be cached despite page 3 failing", page)
		}
	}

	// The failed page is retried on the next walk; the others are not.
	v.FailRasterize[3] = false
	v.Reset()
	if n := c.Ensure(context.Background(), 5); n != 1 {
		t.Errorf("expected only page 3 regenerated, got %d", n)
	}
	if calls := v.CallsTo("RasterizePage"); len(calls) != 1 || calls[0].Arg != 3 {
		t.Errorf("expected one request for page 3, got %v", calls)
	}
}

func TestEnsure_GrowingDocument(t *testing.T) {
	v := viewertest.New(12)
	c := New(v, quietLog(), Config{}, nil)
	c.Ensure(context.Background(), 4)
	v.Reset()

	if n := c.Ensure(context.Background(), 12); n != 6 {
		t.Errorf("expected pages 5-10 generated, got %d", n)
	}
	if c.Len() != 10 {
		t.Errorf("expected 10 cached, got %d", c.Len())
	}
}

func TestEnsure_ConcurrentCallsShareWork(t *testing.T) {
	v := viewertest.New(10)
	c := New(v, quietLog(), Config{}, nil)

	var (
		wg    sync.WaitGroup
		total atomic.Int64
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			total.Add(int64(c.Ensure(context.Background(), 10)))
		}()
	}
	wg.Wait()

	if got := total.Load(); got != 10 {
		t.Errorf("expected generated counts across callers to sum to 10, got %d", got)
	}
	for page := 1; page <= 10; page++ {
		if got := v.RasterizeCount(page); got != 1 {
			t.Errorf("page %d: expected exactly 1 rasterization, got %d", page, got)
		}
	}
}

func TestEnsure_LowerCapAndFixedScale(t *testing.T) {
	v := viewertest.New(10)
	c := New(v, quietLog(), Config{MaxPages: 2}, nil)
	c.Ensure(context.Background(), 10)

	if c.Len() != 2 {
		t.Errorf("expected 2 cached, got %d", c.Len())
	}
	url, _ := c.Get(1)
	if url != "data:image/png;base64,page-1@0.5" {
		t.Errorf("unexpected url %q", url)
	}
}

func TestEnsure_ConfigCannotRaiseCap(t *testing.T) {
	v := viewertest.New(25)
	c := New(v, quietLog(), Config{MaxPages: 25}, nil)

	if n := c.Ensure(context.Background(), 25); n != MaxPages {
		t.Errorf("expected %d generated, got %d", MaxPages, n)
	}
	for page := MaxPages + 1; page <= 25; page++ {
		if got := v.RasterizeCount(page); got != 0 {
			t.Errorf("page %d: expected no rasterization, got %d", page, got)
		}
	}
}

func TestEnsure_RecordsFailedRenders(t *testing.T) {
	v := viewertest.New(3)
	v.FailRasterize[2] = true
	stats := NewStats(time.Hour)
	c := New(v, quietLog(), Config{}, stats)
	c.Ensure(context.Background(), 3)

	snap := stats.Snapshot()
	if snap.Count != 2 || snap.Failed != 1 {
		t.Errorf("expected 2 ok and 1 failed, got %d/%d", snap.Count, snap.Failed)
	}
}

func TestEnsure_RecordsStats(t *testing.T) {
	v := viewertest.New(3)
	stats := NewStats(time.Hour)
	c := New(v, quietLog(), Config{}, stats)
	c.Ensure(context.Background(), 3)

	if got := stats.Snapshot().Count; got != 3 {
		t.Errorf("expected 3 samples, got %d", got)
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	v := viewertest.New(2)
	c := New(v, quietLog(), Config{}, nil)
	c.Ensure(context.Background(), 2)

	all := c.All()
	delete(all, 1)
	if _, ok := c.Get(1); !ok {
		t.Error("mutating All() result must not affect the cache")
	}
}
