package session

import (
	"sync"
	"time"
)

const (
	MinZoom     = 50
	MaxZoom     = 300
	ZoomStep    = 25
	DefaultZoom = 100
)

// State is the single source of truth for one viewer session. Only Session
// and ModeController mutate it.
type State struct {
	mu sync.Mutex

	documentName string
	currentPage  int
	totalPages   int
	zoomPercent  int
	loaded       bool
	activeMode   Mode
	updatedAt    time.Time
}

func NewState() *State {
	return &State{
		currentPage: 1,
		zoomPercent: DefaultZoom,
		updatedAt:   time.Now(),
	}
}

// Snapshot is a read-only copy of the state handed to readers.
type Snapshot struct {
	DocumentName string `json:"document_name,omitempty"`
	CurrentPage  int    `json:"current_page"`
	TotalPages   int    `json:"total_pages"`
	ZoomPercent  int    `json:"zoom_percent"`
	IsLoaded     bool   `json:"is_loaded"`
	ActiveMode   Mode   `json:"active_mode"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		DocumentName: s.documentName,
		CurrentPage:  s.currentPage,
		TotalPages:   s.totalPages,
		ZoomPercent:  s.zoomPercent,
		IsLoaded:     s.loaded,
		ActiveMode:   s.activeMode,
	}
}

// setDocument marks a document as loaded and resets navigation.
func (s *State) setDocument(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentName = name
	s.loaded = true
	s.currentPage = 1
	s.totalPages = 0
	s.touchLocked()
}

// restore puts back a state captured with Snapshot.
func (s *State) restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentName = snap.DocumentName
	s.loaded = snap.IsLoaded
	s.currentPage = snap.CurrentPage
	s.totalPages = snap.TotalPages
	s.zoomPercent = snap.ZoomPercent
	s.activeMode = snap.ActiveMode
	s.touchLocked()
}

// setTotalPages records the page count, pulling the current page back into
// range when the document shrank.
func (s *State) setTotalPages(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalPages = max(total, 0)
	s.currentPage = clamp(s.currentPage, 1, max(s.totalPages, 1))
	s.touchLocked()
}

// setCurrentPage clamps page into [1, max(totalPages,1)] and returns the
// stored value.
func (s *State) setCurrentPage(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPage = clamp(page, 1, max(s.totalPages, 1))
	s.touchLocked()
	return s.currentPage
}

// setZoom clamps percent into [MinZoom, MaxZoom] and returns the stored value.
func (s *State) setZoom(percent int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoomPercent = clamp(percent, MinZoom, MaxZoom)
	s.touchLocked()
	return s.zoomPercent
}

// addZoom moves the zoom by delta, clamped.
func (s *State) addZoom(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoomPercent = clamp(s.zoomPercent+delta, MinZoom, MaxZoom)
	s.touchLocked()
	return s.zoomPercent
}

func (s *State) setMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeMode = m
	s.touchLocked()
}

func (s *State) mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeMode
}

func (s *State) isLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *State) pages() (current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage, s.totalPages
}

// UpdatedAt reports the last mutation time.
func (s *State) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *State) touchLocked() {
	s.updatedAt = time.Now()
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
