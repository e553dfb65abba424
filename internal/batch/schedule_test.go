package batch

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/search"
)

func TestNewScheduler(t *testing.T) {
	r := newTestRunner(&fakeSearcher{}, nil, nil, nil)

	t.Run("accepts standard cron expressions", func(t *testing.T) {
		for _, expr := range []string{DefaultSchedule, "*/15 * * * *", "@daily"} {
			_, err := NewScheduler(expr, r, t.TempDir(), nil, zerolog.Nop())
			assert.NoError(t, err, expr)
		}
	})

	t.Run("rejects invalid expressions", func(t *testing.T) {
		_, err := NewScheduler("61 * * * *", r, t.TempDir(), nil, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid schedule")
	})
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	r := newTestRunner(&fakeSearcher{}, nil, nil, nil)
	s, err := NewScheduler(DefaultSchedule, r, t.TempDir(), nil, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

// blockingSearcher signals each search and waits for its context to end.
type blockingSearcher struct {
	started chan struct{}
}

func (b *blockingSearcher) Search(ctx context.Context, _ search.Query) ([]domain.ArticleRecord, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestScheduler_CancelStopsRunningJob(t *testing.T) {
	b := &blockingSearcher{started: make(chan struct{}, 1)}
	r := newTestRunner(b, nil, nil, nil)
	topics := []Topic{{Name: "first", Query: "a"}, {Name: "second", Query: "b"}}
	s, err := NewScheduler("@every 1s", r, t.TempDir(), topics, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-b.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job did not start")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler waited on a job that ignored cancellation")
	}
}
