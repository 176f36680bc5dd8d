// Package historian drains match events from the Redis queue and persists them to Postgres.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Queue yields raw event records. Pop returns ok=false when nothing arrived within timeout.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, bool, error)
}

// Store persists event batches and abandoned matches.
type Store interface {
	InsertMatchEvents(ctx context.Context, events []models.MatchEvent) error
	MarkMatchAbandoned(ctx context.Context, matchID uuid.UUID) error
}

// RedisQueue pops from a Redis list with BLPOP.
type RedisQueue struct {
	Client *redis.Client
	Name   string
}

func (q RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	res, err := q.Client.BLPop(ctx, timeout, q.Name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// res[0] is the list name, res[1] the payload.
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// Options tunes batching and abandonment.
type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	// Inactivity is how long a match may stay silent before it is marked abandoned.
	Inactivity time.Duration
	// SweepInterval defaults to one minute.
	SweepInterval time.Duration
}

// Service batches queued match events and flushes them to the Store.
type Service struct {
	queue Queue
	store Store
	opts  Options
	log   *logrus.Logger
	now   func() time.Time

	lastActivity sync.Map // map[uuid.UUID]time.Time

	batchMu sync.Mutex
	batch   []models.MatchEvent
}

// New builds a Service. Zero options fall back to the defaults used by cmd/historian.
func New(queue Queue, store Store, opts Options, logger *logrus.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		queue: queue,
		store: store,
		opts:  opts,
		log:   logger,
		now:   time.Now,
		batch: make([]models.MatchEvent, 0, opts.BatchSize),
	}
}

// Run reads the queue until ctx is cancelled, then flushes whatever is still batched.
func (s *Service) Run(ctx context.Context) {
	go s.inactivityLoop(ctx)

	s.log.Info("historian started")
	s.readLoop(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.log.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		default:
			raw, ok, err := s.queue.Pop(ctx, s.opts.FlushDelay)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Errorf("queue pop: %v", err)
				time.Sleep(s.opts.FlushDelay)
				continue
			}
			if ok {
				s.Handle(ctx, raw)
			}
		}
	}
}

// Handle decodes one record, tracks its match's activity and batches it.
func (s *Service) Handle(ctx context.Context, raw string) {
	var ev models.MatchEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		s.log.Warnf("invalid event record: %v", err)
		return
	}
	if ev.MatchID == uuid.Nil {
		s.log.Warn("event record without match id")
		return
	}

	if ev.Type == "match_end" {
		s.lastActivity.Delete(ev.MatchID)
	} else {
		s.lastActivity.Store(ev.MatchID, s.now())
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, ev)
	full := len(s.batch) >= s.opts.BatchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch in one transaction and returns how many events were written.
// A failed batch is dropped and logged.
func (s *Service) Flush(ctx context.Context) int {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return 0
	}
	pending := make([]models.MatchEvent, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.store.InsertMatchEvents(ctx, pending); err != nil {
		s.log.Errorf("flush %d events: %v", len(pending), err)
		return 0
	}
	s.log.Debugf("flushed %d events", len(pending))
	return len(pending)
}

// Pending returns the number of batched events not yet flushed.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepInactive(ctx)
		}
	}
}

// SweepInactive marks every match silent for longer than Inactivity as abandoned and stops
// tracking it. It returns the matches it marked.
func (s *Service) SweepInactive(ctx context.Context) []uuid.UUID {
	now := s.now()
	var marked []uuid.UUID
	s.lastActivity.Range(func(key, val interface{}) bool {
		matchID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.opts.Inactivity {
			return true
		}
		if err := s.store.MarkMatchAbandoned(ctx, matchID); err != nil {
			s.log.Errorf("failed to mark match %v abandoned: %v", matchID, err)
			return true
		}
		s.log.Infof("marked match %v abandoned after %v of inactivity", matchID, now.Sub(last).Round(time.Second))
		s.lastActivity.Delete(matchID)
		marked = append(marked, matchID)
		return true
	})
	return marked
}
