package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/geodov/godov/internal/cache"
	"github.com/geodov/godov/internal/cache/filecache"
	"github.com/geodov/godov/internal/core/config"
	obs "github.com/geodov/godov/internal/core/observability"
	"github.com/geodov/godov/internal/invalidation"
)

const (
	pkey1 = "https://www.dov.vlaanderen.be/data/boring/1930-120730"
	pkey2 = "https://www.dov.vlaanderen.be/data/boring/1930-120731"
)

type fakeCache struct {
	cache.None
	failFirst atomic.Bool
	mu        sync.Mutex
	dropped   []string
}

func (f *fakeCache) Invalidate(_ context.Context, pkey string) error {
	if f.failFirst.Load() {
		f.failFirst.Store(false)
		return errors.New("boom")
	}
	f.mu.Lock()
	f.dropped = append(f.dropped, pkey)
	f.mu.Unlock()
	return nil
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "dov-object-updates" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(op string, pkeys ...string) []byte {
	ev := invalidation.Event{
		Version: 1, Op: op, Typename: "dov-pub:Boringen", TS: time.Now().UTC(), Pkeys: pkeys,
	}
	b, _ := json.Marshal(ev)
	return b
}

func newConsumerForTest(c cache.Cache, m *obs.Metrics) *Consumer {
	cfg := Config{Brokers: []string{"x"}, Topic: "dov-object-updates", GroupID: "g"}
	return New(cfg, nil, c, m)
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	fc := &fakeCache{}
	reg := prometheus.NewRegistry()
	c := newConsumerForTest(fc, obs.Init(reg, true))
	g := &groupHandler{process: c.ProcessOne}

	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Topic: "dov-object-updates", Offset: 10, Value: eventBytes("update", pkey1)}
	ch <- &sarama.ConsumerMessage{Topic: "dov-object-updates", Offset: 11, Value: eventBytes("delete", pkey1, pkey2)}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
	if len(fc.dropped) != 3 || fc.dropped[2] != pkey2 {
		t.Fatalf("dropped=%v", fc.dropped)
	}
	if n, err := testutil.GatherAndCount(reg, "dov_cache_invalidations_total"); err != nil || n != 2 {
		t.Fatalf("invalidation series=%d err=%v, want 2", n, err)
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	fc := &fakeCache{}
	fc.failFirst.Store(true)
	c := newConsumerForTest(fc, nil)

	ctx := context.Background()
	msg := &sarama.ConsumerMessage{Topic: "dov-object-updates", Offset: 5, Value: eventBytes("update", pkey1)}
	if err := c.ProcessOne(ctx, msg); err == nil {
		t.Fatalf("expected error on first attempt")
	}

	s := &sess{ctx: ctx}
	g := &groupHandler{process: c.ProcessOne}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
}

func TestInvalidEventsAreSkipped(t *testing.T) {
	fc := &fakeCache{}
	c := newConsumerForTest(fc, nil)
	g := &groupHandler{process: c.ProcessOne}

	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Offset: 1, Value: []byte("not json")}
	ch <- &sarama.ConsumerMessage{Offset: 2, Value: eventBytes("merge", pkey1)}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 {
		t.Fatalf("skipped events still marked; marked=%v", s.marked)
	}
	if len(fc.dropped) != 0 {
		t.Fatalf("dropped=%v, want none", fc.dropped)
	}
}

func TestMultiPartition_Parallel_NoCrossOrdering(t *testing.T) {
	fc := &fakeCache{}
	c := newConsumerForTest(fc, nil)
	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- &sarama.ConsumerMessage{Partition: 0, Offset: 1, Value: eventBytes("update", pkey1)}
	p0 <- &sarama.ConsumerMessage{Partition: 0, Offset: 2, Value: eventBytes("update", pkey1)}
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 1, Value: eventBytes("update", pkey2)}
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 2, Value: eventBytes("update", pkey2)}
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
}

func TestInvalidatesFileCache(t *testing.T) {
	ctx := context.Background()
	store := filecache.NewGzip(t.TempDir(), time.Hour)
	if err := store.Put(ctx, pkey1, []byte("<boring/>")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	c := newConsumerForTest(store, nil)
	msg := &sarama.ConsumerMessage{Value: eventBytes("update", pkey1)}
	if err := c.ProcessOne(ctx, msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if _, ok, _ := store.Get(ctx, pkey1); ok {
		t.Fatalf("document still cached after update event")
	}
}

func TestFromKafka(t *testing.T) {
	cfg := FromKafka(config.KafkaCfg{
		Brokers:           "k1:9092, k2:9092,",
		InvalidationTopic: "updates",
		GroupID:           "g",
	})
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers=%v", cfg.Brokers)
	}
	if cfg.Topic != "updates" || cfg.GroupID != "g" || !cfg.InitialOffsetOldest {
		t.Fatalf("cfg=%+v", cfg)
	}
}
