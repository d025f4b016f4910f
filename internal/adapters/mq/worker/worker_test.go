package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/crimemap/internal/adapters/mq/queue"
	"github.com/okian/crimemap/internal/adapters/mq/worker"
	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/internal/domain/registry"
	"github.com/okian/crimemap/pkg/logger"
)

// mockQueue feeds jobs through a channel.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 100)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(j queue.Job) { mq.jobs <- j }

// mockLoader records the keys it was asked to load.
type mockLoader struct {
	mu      sync.Mutex
	loaded  []string
	indexed int
	fail    map[string]error
}

func newMockLoader() *mockLoader {
	return &mockLoader{fail: map[string]error{}}
}

func (ml *mockLoader) Load(_ context.Context, key registry.Key) (*model.Dataset, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	if err := ml.fail[key.Slug]; err != nil {
		return nil, err
	}
	ml.loaded = append(ml.loaded, key.Slug)
	return &model.Dataset{Fidelity: key.Fidelity}, nil
}

func (ml *mockLoader) Constabularies(context.Context) ([]registry.ConstabularyOption, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.indexed++
	return nil, nil
}

func (ml *mockLoader) loadedSlugs() []string {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return append([]string(nil), ml.loaded...)
}

func incidents(slug string) queue.Job {
	return registry.Key{Kind: registry.KindIncidents, Fidelity: model.FidelityHigh, Slug: slug, Location: slug}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logger.Init()

		q := newMockQueue()
		loader := newMockLoader()

		convey.Convey("When creating a worker with custom options", func() {
			w := worker.NewInMemoryWorker(q, loader,
				worker.WithName("test-worker"),
				worker.WithLogger(logger.Get()),
			)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker over a closed queue", func() {
			w := worker.NewInMemoryWorker(q, loader)
			q.add(incidents("Kent"))
			q.add(registry.Key{Kind: registry.KindIndex, Slug: "constabularies"})
			q.add(incidents("Avon_and_Somerset"))
			_ = q.Close()

			w.Run(context.Background())

			convey.Convey("Then every job is loaded through the loader", func() {
				convey.So(loader.loadedSlugs(), convey.ShouldResemble, []string{"Kent", "Avon_and_Somerset"})
				convey.So(loader.indexed, convey.ShouldEqual, 1)
			})

			convey.Convey("And Done is closed", func() {
				select {
				case <-w.Done():
				default:
					convey.So("done not closed", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the context is canceled", func() {
			w := worker.NewInMemoryWorker(q, loader)
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := newMockQueue()
		loader := newMockLoader()
		loader.fail["Dorset"] = errors.New("fetch failed")
		pool := worker.NewPool(3, q, loader)

		convey.Convey("When jobs are processed and the pool shuts down", func() {
			pool.Start(context.Background())
			for _, slug := range []string{"Kent", "Dorset", "Essex", "Surrey"} {
				q.add(incidents(slug))
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every job is accounted for", func() {
				convey.So(err, convey.ShouldBeNil)
				processed, failed := pool.Stats()
				convey.So(processed, convey.ShouldEqual, 3)
				convey.So(failed, convey.ShouldEqual, 1)
				convey.So(loader.loadedSlugs(), convey.ShouldHaveLength, 3)
			})
		})

		convey.Convey("When waiting with an expired context", func() {
			pool.Start(context.Background())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := pool.Wait(ctx)

			convey.Convey("Then the wait reports the context error", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				_ = q.Close()
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		q := newMockQueue()
		pool := worker.NewPool(0, q, newMockLoader())

		convey.Convey("Then the pool still drains the queue", func() {
			pool.Start(context.Background())
			q.add(incidents("Kent"))
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			processed, _ := pool.Stats()
			convey.So(processed, convey.ShouldEqual, 1)
		})
	})
}
