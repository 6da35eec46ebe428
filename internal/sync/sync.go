package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/store"
)

// Destination receives each backup export.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Outcome labels the result of one sync run.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeError     Outcome = "error"
)

// Status describes the most recent sync run.
type Status struct {
	At      time.Time // zero until the first run
	Outcome Outcome
	Bytes   int
	Err     error
}

// Scheduler exports bookings and configs on an interval and fans the export
// out to its destinations. Runs whose bookings and configs match the last
// fully delivered export are skipped.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	// OnRun, when set, is called after every run. Used for metrics.
	OnRun func(Outcome)

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	status    Status
	delivered [sha256.Size]byte
	haveSum   bool
}

func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start runs one sync immediately and then one per interval until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.SyncOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SyncOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight run.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Status returns the result of the most recent run.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SyncOnce performs a single run. A failing destination does not stop the
// others; the first failure is returned and the next run retries all of
// them even if nothing changed.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		s.logger.Error("sync export failed", "err", err)
		return s.finish(Status{Outcome: OutcomeError, Err: err}, nil)
	}
	data := buf.Bytes()
	sum := contentSum(data)

	s.mu.Lock()
	unchanged := s.haveSum && s.delivered == sum
	s.mu.Unlock()
	if unchanged {
		s.logger.Debug("sync skipped, export unchanged", "bytes", len(data))
		return s.finish(Status{Outcome: OutcomeUnchanged, Bytes: len(data)}, nil)
	}

	var errs []error
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			name := destName(i, dest)
			s.logger.Error("sync destination write failed", "destination", name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return s.finish(Status{Outcome: OutcomeError, Bytes: len(data), Err: errs[0]}, nil)
	}
	s.logger.Info("sync completed", "destinations", len(s.destinations), "bytes", len(data))
	return s.finish(Status{Outcome: OutcomeOK, Bytes: len(data)}, &sum)
}

func (s *Scheduler) finish(st Status, delivered *[sha256.Size]byte) error {
	st.At = time.Now()
	s.mu.Lock()
	s.status = st
	if delivered != nil {
		s.delivered, s.haveSum = *delivered, true
	} else if st.Outcome == OutcomeError {
		s.haveSum = false
	}
	s.mu.Unlock()
	if s.OnRun != nil {
		s.OnRun(st.Outcome)
	}
	return st.Err
}

// contentSum hashes an export without its header line, whose timestamp
// differs on every run.
func contentSum(data []byte) [sha256.Size]byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	return sha256.Sum256(data)
}

func destName(i int, d Destination) string {
	if s, ok := d.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("destination %d", i)
}
