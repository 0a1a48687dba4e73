// Package conflict maintains the per-room, per-day index of active booking
// intervals and enforces the non-overlap invariant. It knows nothing about
// business rules; admission policy lives in the service layer.
package conflict

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrBusy means the admission right could not be acquired within the
	// caller's wait budget.
	ErrBusy = errors.New("admission lock wait timed out")

	// ErrOverlap means a registration would violate the non-overlap
	// invariant. Callers are expected to run Conflicts first; seeing this
	// from Register indicates a caller bug.
	ErrOverlap = errors.New("interval overlaps an existing registration")
)

// Key addresses one admission bucket. Date is "YYYY-MM-DD".
type Key struct {
	RoomID string
	Date   string
}

// Interval is a half-open [Start, End) slot in minutes from midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps implements the half-open interval test: [s1,e1) and [s2,e2)
// overlap iff s1 < e2 && s2 < e1.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

type entry struct {
	iv        Interval
	bookingID string
}

// bucket holds one (room, date) sequence of non-overlapping entries sorted
// by start, plus the admission semaphore that serializes writers on this key.
type bucket struct {
	sem     chan struct{}
	mu      sync.RWMutex
	entries []entry
}

func newBucket() *bucket {
	return &bucket{sem: make(chan struct{}, 1)}
}

// Index is the process-wide conflict index. It is a derived cache: empty at
// start and rebuilt from the store of record via Rebuild.
type Index struct {
	mu      sync.Mutex
	buckets map[Key]*bucket
}

func NewIndex() *Index {
	return &Index{buckets: make(map[Key]*bucket)}
}

func (x *Index) bucket(key Key) *bucket {
	x.mu.Lock()
	defer x.mu.Unlock()
	b, ok := x.buckets[key]
	if !ok {
		b = newBucket()
		x.buckets[key] = b
	}
	return b
}

// Acquire takes the exclusive admission right for key, waiting at most wait.
// It returns a release function on success and ErrBusy on timeout, or the
// context error if ctx is done first. Different keys never contend.
func (x *Index) Acquire(ctx context.Context, key Key, wait time.Duration) (func(), error) {
	b := x.bucket(key)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-b.sem })
		}, nil
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Conflicts reports whether iv overlaps any registered interval for key.
// Entries are kept sorted and mutually non-overlapping, so checking the
// insertion point's immediate neighbors suffices.
func (x *Index) Conflicts(key Key, iv Interval) bool {
	b := x.bucket(key)
	b.mu.RLock()
	defer b.mu.RUnlock()

	i := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].iv.Start >= iv.Start
	})

	if i > 0 && b.entries[i-1].iv.Overlaps(iv) {
		return true
	}
	if i < len(b.entries) && b.entries[i].iv.Overlaps(iv) {
		return true
	}
	return false
}

// Register inserts iv for bookingID, preserving start order. The caller must
// hold the key's admission right.
func (x *Index) Register(key Key, iv Interval, bookingID string) error {
	b := x.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	i := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].iv.Start >= iv.Start
	})

	if i > 0 && b.entries[i-1].iv.Overlaps(iv) {
		return ErrOverlap
	}
	if i < len(b.entries) && b.entries[i].iv.Overlaps(iv) {
		return ErrOverlap
	}

	b.entries = append(b.entries, entry{})
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = entry{iv: iv, bookingID: bookingID}
	return nil
}

// Remove deletes exactly the interval registered for bookingID, leaving the
// rest untouched. It reports whether anything was removed.
func (x *Index) Remove(key Key, bookingID string) bool {
	b := x.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.entries {
		if e.bookingID == bookingID {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Count returns the number of registered intervals for key.
func (x *Index) Count(key Key) int {
	b := x.bucket(key)
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Registration is one interval to load during a rebuild.
type Registration struct {
	Key       Key
	Interval  Interval
	BookingID string
}

// Rebuild replaces the index contents from the store of record. It is meant
// for process start, before the index is shared with request handlers.
func (x *Index) Rebuild(regs []Registration) error {
	x.mu.Lock()
	x.buckets = make(map[Key]*bucket)
	x.mu.Unlock()

	for _, reg := range regs {
		if err := x.Register(reg.Key, reg.Interval, reg.BookingID); err != nil {
			return err
		}
	}
	return nil
}
