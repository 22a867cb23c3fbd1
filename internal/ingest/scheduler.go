package ingest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skyserve/drishti/internal/logger"
)

// Scheduler drives periodic re-scrape cycles. Cycles for distinct sources
// run concurrently up to the configured parallelism; overlapping runs for
// the same source are suppressed so duplicate candidates cannot race.
type Scheduler struct {
	coord       *Coordinator
	log         *logger.Logger
	parallelism int

	mu      sync.Mutex
	running map[string]bool
}

func NewScheduler(coord *Coordinator, log *logger.Logger, parallelism int) *Scheduler {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Scheduler{
		coord:       coord,
		log:         log,
		parallelism: parallelism,
		running:     make(map[string]bool),
	}
}

// RunCycle ingests every source once. Per-source failures are logged and do
// not abort the other sources.
func (s *Scheduler) RunCycle(ctx context.Context, sources []Source) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for _, src := range sources {
		src := src
		if !s.tryBegin(src.Name()) {
			s.log.Info("ingestion already running for source, suppressing", "source", src.Name())
			continue
		}
		g.Go(func() error {
			defer s.end(src.Name())
			s.ingestSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) ingestSource(ctx context.Context, src Source) {
	docs, err := src.Fetch(ctx)
	if err != nil {
		s.log.Error("source fetch failed", "source", src.Name(), "error", err)
		return
	}
	for _, doc := range docs {
		if ctx.Err() != nil {
			return
		}
		stats, err := s.coord.IngestDocument(ctx, doc)
		if err != nil {
			s.log.Error("document ingestion failed", "source", src.Name(), "url", doc.URL, "error", err)
			continue
		}
		if stats.Skipped {
			continue
		}
		s.log.Info("document ingested",
			"source", src.Name(), "url", doc.URL,
			"nodes", stats.NodesUpserted, "edges", stats.EdgesUpserted,
			"superseded", stats.EdgesSuperseded, "rejected", stats.Rejected)
	}
}

// Start runs cycles at the given interval until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context, sources []Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.RunCycle(ctx, sources)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunCycle(ctx, sources)
		}
	}
}

func (s *Scheduler) tryBegin(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) end(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, name)
}
