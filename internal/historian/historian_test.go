package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanQueue chan string

func (q chanQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	select {
	case raw := <-q:
		return raw, true, nil
	case <-time.After(timeout):
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

type fakeStore struct {
	mu        sync.Mutex
	batches   [][]models.MatchEvent
	abandoned []uuid.UUID
	failNext  bool
}

func (f *fakeStore) InsertMatchEvents(_ context.Context, events []models.MatchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("db down")
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakeStore) MarkMatchAbandoned(_ context.Context, matchID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, matchID)
	return nil
}

func (f *fakeStore) written() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func record(t *testing.T, matchID uuid.UUID, index int, eventType string) string {
	t.Helper()
	data, err := json.Marshal(models.MatchEvent{
		MatchID:   matchID,
		Index:     index,
		Type:      eventType,
		Payload:   map[string]interface{}{"round": 1},
		Timestamp: time.Now().UnixMilli(),
	})
	require.NoError(t, err)
	return string(data)
}

func TestHandleFlushesAtBatchSize(t *testing.T) {
	store := &fakeStore{}
	s := New(chanQueue(nil), store, Options{BatchSize: 3}, quietLogger())
	matchID := uuid.New()
	ctx := context.Background()

	s.Handle(ctx, record(t, matchID, 1, "round_start"))
	s.Handle(ctx, record(t, matchID, 2, "phase_entered"))
	assert.Equal(t, 2, s.Pending())
	assert.Zero(t, store.written())

	s.Handle(ctx, record(t, matchID, 3, "phase_entered"))
	assert.Zero(t, s.Pending())
	require.Len(t, store.batches, 1)
	assert.Equal(t, []int{1, 2, 3}, []int{store.batches[0][0].Index, store.batches[0][1].Index, store.batches[0][2].Index})
}

func TestHandleSkipsMalformedRecords(t *testing.T) {
	s := New(chanQueue(nil), &fakeStore{}, Options{}, quietLogger())
	ctx := context.Background()

	s.Handle(ctx, "{not json")
	s.Handle(ctx, `{"event_type":"round_start"}`)
	assert.Zero(t, s.Pending())
}

func TestFlushDropsFailedBatch(t *testing.T) {
	store := &fakeStore{failNext: true}
	s := New(chanQueue(nil), store, Options{}, quietLogger())
	ctx := context.Background()

	s.Handle(ctx, record(t, uuid.New(), 1, "round_start"))
	assert.Zero(t, s.Flush(ctx))
	assert.Zero(t, s.Pending())
	assert.Zero(t, s.Flush(ctx), "nothing left to write")
}

func TestRunFlushesOnTimerAndShutdown(t *testing.T) {
	store := &fakeStore{}
	queue := make(chanQueue, 8)
	s := New(queue, store, Options{BatchSize: 100, FlushDelay: 10 * time.Millisecond}, quietLogger())
	matchID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	queue <- record(t, matchID, 1, "round_start")
	queue <- record(t, matchID, 2, "phase_entered")
	assert.Eventually(t, func() bool { return store.written() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSweepInactiveMarksSilentMatches(t *testing.T) {
	store := &fakeStore{}
	s := New(chanQueue(nil), store, Options{Inactivity: time.Minute}, quietLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	stale, fresh, finished := uuid.New(), uuid.New(), uuid.New()
	s.Handle(ctx, record(t, stale, 1, "round_start"))
	s.Handle(ctx, record(t, finished, 1, "round_start"))
	now = now.Add(50 * time.Second)
	s.Handle(ctx, record(t, fresh, 1, "round_start"))
	s.Handle(ctx, record(t, finished, 2, "match_end"))

	now = now.Add(30 * time.Second)
	marked := s.SweepInactive(ctx)
	assert.Equal(t, []uuid.UUID{stale}, marked)
	assert.Equal(t, []uuid.UUID{stale}, store.abandoned)

	assert.Empty(t, s.SweepInactive(ctx), "abandoned matches are no longer tracked")
}

func TestRedisQueuePop(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	name := "turnsync_test_" + uuid.NewString()
	defer rdb.Del(context.Background(), name)
	raw := record(t, uuid.New(), 1, "round_start")
	require.NoError(t, rdb.RPush(ctx, name, raw).Err())

	q := RedisQueue{Client: rdb, Name: name}
	got, ok, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, raw, got)

	_, ok, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}
