package game

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Segment is one entry of the story feed: either an echoed player action or a
// generated narration beat.
type Segment struct {
	// ID uniquely identifies the segment within its log. Assigned by Append.
	ID string `json:"id"`

	// Text is the displayed prose.
	Text string `json:"text"`

	// ImagePrompt is the scene description used to illustrate this segment.
	// Empty for player-action segments.
	ImagePrompt string `json:"imagePrompt,omitempty"`

	// ImageURL is a data URI filled in asynchronously once illustration
	// completes. It stays empty forever when illustration fails.
	ImageURL string `json:"imageUrl,omitempty"`

	// Choices are the suggested next actions attached to this segment.
	Choices []string `json:"choices,omitempty"`

	// UserAction marks segments that echo the player's own input.
	UserAction bool `json:"isUserAction"`

	// Timestamp is when the segment was appended.
	Timestamp time.Time `json:"timestamp"`
}

// Log is the append-only story feed of one session. Segments are never removed
// or reordered; the only in-place mutation is PatchImage. Safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	segments []Segment
	byID     map[string]int
}

// NewLog returns an empty story log.
func NewLog() *Log {
	return &Log{byID: make(map[string]int)}
}

// Append adds seg to the end of the log and returns it with its assigned ID and
// timestamp. An ID or timestamp already set on seg is kept, which lets tests
// pin both.
func (l *Log) Append(seg Segment) Segment {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	if seg.Timestamp.IsZero() {
		seg.Timestamp = time.Now().UTC()
	}
	l.byID[seg.ID] = len(l.segments)
	l.segments = append(l.segments, seg)
	return seg
}

// PatchImage sets the image URL of the segment with the given ID and reports
// whether a segment was patched. An unknown ID is a no-op: the result of a
// late illustration for a segment that no longer matters is simply dropped.
func (l *Log) PatchImage(id, url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byID[id]
	if !ok {
		return false
	}
	l.segments[i].ImageURL = url
	return true
}

// Get returns the segment with the given ID.
func (l *Log) Get(id string) (Segment, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.byID[id]
	if !ok {
		return Segment{}, false
	}
	return cloneSegment(l.segments[i]), true
}

// Snapshot returns a copy of all segments in append order.
func (l *Log) Snapshot() []Segment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Segment, len(l.segments))
	for i, seg := range l.segments {
		out[i] = cloneSegment(seg)
	}
	return out
}

// RecentNarration returns the text of the last n non-user segments, oldest
// first. Fewer are returned when the log is shorter.
func (l *Log) RecentNarration(n int) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []string
	for i := len(l.segments) - 1; i >= 0 && len(out) < n; i-- {
		if l.segments[i].UserAction {
			continue
		}
		out = append(out, l.segments[i].Text)
	}
	slices.Reverse(out)
	return out
}

// Len returns the number of segments in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.segments)
}

func cloneSegment(seg Segment) Segment {
	seg.Choices = slices.Clone(seg.Choices)
	return seg
}
