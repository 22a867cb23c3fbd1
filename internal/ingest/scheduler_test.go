package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyserve/drishti/internal/logger"
	"github.com/skyserve/drishti/internal/normalize"
)

type stubSource struct {
	name    string
	docs    []normalize.RawDocument
	block   chan struct{}
	fetches int
	mu      sync.Mutex
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) ([]normalize.RawDocument, error) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.docs, nil
}

func (s *stubSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func TestRunCycleIngestsSources(t *testing.T) {
	f := newFixture(t)
	sched := NewScheduler(f.coord, logger.NewNop(), 2)

	src := &stubSource{name: "stub", docs: []normalize.RawDocument{{
		URL:       "https://portal.example/launches",
		Body:      launchPage("2016-09-26"),
		FetchedAt: time.Now(),
	}}}

	sched.RunCycle(context.Background(), []Source{src})

	nodes, err := f.store.NodesByType(context.Background(), "Satellite", 10)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestRunCycleSuppressesOverlappingSource(t *testing.T) {
	f := newFixture(t)
	sched := NewScheduler(f.coord, logger.NewNop(), 2)

	src := &stubSource{name: "slow", block: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		sched.RunCycle(context.Background(), []Source{src})
		close(done)
	}()

	// Wait for the first cycle to be inside Fetch, then start a second
	// cycle for the same source. It must be suppressed, not queued.
	require.Eventually(t, func() bool { return src.fetchCount() == 1 }, time.Second, 5*time.Millisecond)
	sched.RunCycle(context.Background(), []Source{src})
	assert.Equal(t, 1, src.fetchCount())

	close(src.block)
	<-done
}
