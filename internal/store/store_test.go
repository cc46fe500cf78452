package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgallion1/markview/internal/session"
	"github.com/dgallion1/markview/internal/viewer"
	"github.com/dgallion1/markview/internal/viewer/viewertest"
	"github.com/google/go-cmp/cmp"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	st, err := NewRedisStore("redis://"+s.Addr(), ttl)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, s
}

func customSettings() session.Settings {
	st := session.DefaultSettings()
	st.Highlight.Color = "#80EBFF"
	st.Highlight.Opacity = 0.75
	st.TextBox.FontSizePt = 28
	return st
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	st, _ := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	if _, ok, err := st.Load(ctx, "alice"); err != nil || ok {
		t.Fatalf("expected nothing stored, got ok=%v err=%v", ok, err)
	}
	want := customSettings()
	if err := st.Save(ctx, "alice", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, ok, err := st.Load(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("expected stored settings, got ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestRedisStore_Expires(t *testing.T) {
	st, s := setupTestRedis(t, time.Minute)
	ctx := context.Background()
	if err := st.Save(ctx, "bob", customSettings()); err != nil {
		t.Fatal(err)
	}
	if ttl := s.TTL("markview:settings:bob"); ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %v", ttl)
	}
	s.FastForward(2 * time.Minute)
	if _, ok, _ := st.Load(ctx, "bob"); ok {
		t.Error("expected settings to expire")
	}
}

func TestRedisStore_RejectsCorruptRecord(t *testing.T) {
	st, s := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	if err := s.Set("markview:settings:carol", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := st.Load(ctx, "carol"); err == nil {
		t.Error("expected error for corrupt record")
	}

	bad := `{"settings":{"highlight":{"color":"red","opacity":0.5},"text_box":{"font_color":"#000000","font_size_pt":16}}}`
	if err := s.Set("markview:settings:dave", bad); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := st.Load(ctx, "dave"); err == nil || ok {
		t.Errorf("expected invalid stored settings rejected, got ok=%v err=%v", ok, err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	st, _ := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	_ = st.Save(ctx, "erin", customSettings())
	if err := st.Delete(ctx, "erin"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := st.Load(ctx, "erin"); ok {
		t.Error("expected settings deleted")
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()
	if _, err := NewRedisStore("redis://"+addr, time.Hour); err == nil {
		t.Error("expected connection error")
	}
	if _, err := NewRedisStore("://bad", time.Hour); err == nil {
		t.Error("expected parse error")
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore(20 * time.Millisecond)
	ctx := context.Background()
	want := customSettings()
	_ = m.Save(ctx, "frank", want)

	got, ok, _ := m.Load(ctx, "frank")
	if !ok || got != want {
		t.Fatalf("expected %+v, got ok=%v %+v", want, ok, got)
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok, _ := m.Load(ctx, "frank"); ok {
		t.Error("expected memory record to expire")
	}
}

func TestManagerRestoresFromRedis(t *testing.T) {
	st, _ := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	if err := st.Save(ctx, "gina", customSettings()); err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := session.NewManager(session.ManagerConfig{}, func() viewer.Viewer { return viewertest.New(1) }, st, log)
	s, err := m.Create(ctx, "gina")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(customSettings(), s.Settings()); diff != "" {
		t.Errorf("restored settings mismatch (-want +got):\n%s", diff)
	}
}
