package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	queue "github.com/okian/ladder/internal/adapters/mq/queue"
	worker "github.com/okian/ladder/internal/adapters/mq/worker"
	logging "github.com/okian/ladder/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type submitJob struct {
	Source string
	Value  int64
}

// mockQueue hands out a fixed channel.
type mockQueue struct {
	jobs chan submitJob
	once sync.Once
}

func newMockQueue() *mockQueue { return &mockQueue{jobs: make(chan submitJob, 10)} }

func (m *mockQueue) Dequeue(context.Context) <-chan submitJob { return m.jobs }

func (m *mockQueue) Close() error {
	m.once.Do(func() { close(m.jobs) })
	return nil
}

type recorder struct {
	mu   sync.Mutex
	seen []submitJob
	fail map[string]error
}

func (r *recorder) handle(_ context.Context, j submitJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[j.Source]; err != nil {
		return err
	}
	r.seen = append(r.seen, j)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker over a mock queue", t, func() {
		q := newMockQueue()
		rec := &recorder{fail: map[string]error{"broken": errors.New("rejected")}}
		w := worker.NewWorker[submitJob](q, rec.handle, worker.WithName("submit"))

		convey.Convey("When jobs arrive, including a failing one, and the queue closes", func() {
			q.jobs <- submitJob{Source: "a", Value: 1}
			q.jobs <- submitJob{Source: "broken", Value: 2}
			q.jobs <- submitJob{Source: "b", Value: 3}
			_ = q.Close()
			w.Run(context.Background())

			convey.Convey("Then the failure is skipped and the rest are handled", func() {
				convey.So(rec.count(), convey.ShouldEqual, 2)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker stuck on a job", t, func() {
		q := newMockQueue()
		blocked := make(chan struct{})
		w := worker.NewWorker[submitJob](q, func(context.Context, submitJob) error {
			<-blocked
			return nil
		})
		go w.Run(context.Background())
		q.jobs <- submitJob{Source: "x"}
		time.Sleep(10 * time.Millisecond)

		convey.Convey("When shutdown times out", func() {
			tctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			err := w.Shutdown(tctx)

			convey.Convey("Then the deadline is reported and a later shutdown succeeds", func() {
				convey.So(err, convey.ShouldWrap, context.DeadlineExceeded)
				close(blocked)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool draining a real queue", t, func() {
		q := queue.NewInMemoryQueue[submitJob](queue.WithCapacity(100), queue.WithName("submit"))
		var handled atomic.Int64
		p := worker.NewPool[submitJob](4, q, func(_ context.Context, j submitJob) error {
			handled.Add(j.Value)
			return nil
		}, worker.WithName("submit"))
		convey.So(p.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)
		p.Start(ctx)

		for i := 1; i <= 50; i++ {
			convey.So(q.Enqueue(ctx, submitJob{Source: "s", Value: int64(i)}), convey.ShouldBeTrue)
		}

		convey.Convey("When the pool shuts down", func() {
			err := p.Shutdown(context.Background())

			convey.Convey("Then every queued job was handled first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(handled.Load(), convey.ShouldEqual, 50*51/2)
				convey.So(p.Processed(), convey.ShouldEqual, 50)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool that never started", t, func() {
		q := queue.NewInMemoryQueue[submitJob]()
		p := worker.NewPool[submitJob](0, q, func(context.Context, submitJob) error { return nil })

		convey.Convey("Then shutdown returns at once", func() {
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
			convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}
