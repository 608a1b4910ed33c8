package scheduler

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-decode/api"
)

// Entry is a submission that has not started yet.
type Entry struct {
	Handle    api.Handle
	Image     api.FormattedImage
	Discard   int
	NeedsAux  bool
	Responder api.Responder
}

// Scheduler holds pending entries in arrival order and promotes them into
// running work. Add may be called from any goroutine; Promote and Drain
// are expected from the owner goroutine.
type Scheduler struct {
	mu      sync.Mutex
	pending *queue.Queue
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{pending: queue.New()}
}

// Add appends e to the pending queue.
func (s *Scheduler) Add(e Entry) {
	s.mu.Lock()
	s.pending.Add(e)
	s.mu.Unlock()
}

// Len returns the number of pending entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Length()
}

// Promote hands pending entries to launch oldest first while running stays
// below budget. An entry leaves the queue only once launch accepts it; on a
// launch error the entry stays at the head and Promote returns the count so
// far with that error. launch is called without the queue lock held.
func (s *Scheduler) Promote(running, budget int, launch func(Entry) error) (int, error) {
	promoted := 0
	for running < budget {
		e, ok := s.peek()
		if !ok {
			break
		}
		if err := launch(e); err != nil {
			return promoted, err
		}
		s.drop()
		running++
		promoted++
	}
	return promoted, nil
}

// Drain removes and returns every pending entry in arrival order.
func (s *Scheduler) Drain() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, s.pending.Length())
	for s.pending.Length() > 0 {
		out = append(out, s.pending.Remove().(Entry))
	}
	return out
}

func (s *Scheduler) peek() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Length() == 0 {
		return Entry{}, false
	}
	return s.pending.Peek().(Entry), true
}

// drop removes the head entry. Only the owner removes entries, so the head
// is still the one peek returned.
func (s *Scheduler) drop() {
	s.mu.Lock()
	s.pending.Remove()
	s.mu.Unlock()
}
