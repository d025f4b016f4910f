package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/crimemap/internal/app"
	"github.com/okian/crimemap/internal/domain/invalidation"
	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/internal/domain/registry"
	"github.com/okian/crimemap/internal/domain/render"
	"github.com/okian/crimemap/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const base = "https://example.test/data"

var errMissing = errors.New("missing")

// stubSource serves datasets by location and counts loads.
type stubSource struct {
	mu       sync.Mutex
	datasets map[string]*model.Dataset
	names    []string
	loads    map[string]int
}

func newStubSource() *stubSource {
	return &stubSource{datasets: map[string]*model.Dataset{}, loads: map[string]int{}}
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) LoadDataset(_ context.Context, key registry.Key) (*model.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[key.Location]++
	ds, ok := s.datasets[key.Location]
	if !ok {
		return nil, errMissing
	}
	return ds, nil
}

func (s *stubSource) LoadConstabularies(_ context.Context, key registry.Key) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[key.Location]++
	return s.names, nil
}

func (s *stubSource) loadCount(location string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads[location]
}

func newService(src *stubSource, opts ...service.Option) (*service.Service, *registry.Registry) {
	keys, err := registry.NewKeyBuilder(base)
	So(err, ShouldBeNil)
	reg, err := registry.New(src, keys)
	So(err, ShouldBeNil)
	svc, err := service.New(reg, opts...)
	So(err, ShouldBeNil)
	return svc, reg
}

func avonKey(reg *registry.Registry) registry.Key {
	k, err := reg.Resolve(model.FidelityHigh, "Avon and Somerset")
	So(err, ShouldBeNil)
	return k
}

func highSelection(crime string) model.Selection {
	return model.Selection{
		Fidelity:     model.FidelityHigh,
		Constabulary: "Avon and Somerset",
		CrimeType:    crime,
		Month:        "2023-01",
	}
}

func TestExplore(t *testing.T) {
	Convey("Given a service over a stub source", t, func() {
		ctx := context.Background()
		src := newStubSource()
		svc, reg := newService(src)

		avon := avonKey(reg)
		src.datasets[avon.Location] = &model.Dataset{
			Fidelity: model.FidelityHigh,
			Location: avon.Location,
			Records: []model.Record{
				{Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2023-01", Latitude: 51.45, Longitude: -2.58},
				{Constabulary: "Avon and Somerset", CrimeType: "Robbery", Month: "2023-01", Latitude: 51.40, Longitude: -2.50},
				{Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2023-01", Latitude: 51.38, Longitude: -2.36},
			},
		}
		low, err := reg.Resolve(model.FidelityLow, "")
		So(err, ShouldBeNil)
		src.datasets[low.Location] = &model.Dataset{
			Fidelity:  model.FidelityLow,
			Location:  low.Location,
			HasCounts: true,
			Records: []model.Record{
				{CrimeType: "Burglary", Latitude: 51.5, Longitude: -0.12, Count: 5, HasCount: true},
				{CrimeType: "Robbery", Latitude: 53.4, Longitude: -2.24, Count: 9, HasCount: true},
				{CrimeType: "Burglary", Latitude: 52.4, Longitude: -1.89, Count: 3, HasCount: true},
			},
		}

		Convey("When exploring a high fidelity selection", func() {
			view, err := svc.Explore(ctx, service.Request{Selection: highSelection("Burglary")})

			Convey("Then the matching incidents are clustered", func() {
				So(err, ShouldBeNil)
				So(view.SessionID, ShouldNotBeEmpty)
				So(view.Records, ShouldEqual, 2)
				So(view.Total, ShouldEqual, 2)
				So(view.NoData, ShouldBeFalse)
				So(view.Status, ShouldEqual, "Showing 2 Burglary crimes in Avon and Somerset for 2023-01.")
				So(view.Warning, ShouldBeEmpty)
				So(view.Render, ShouldNotBeNil)
				So(view.Render.Mode, ShouldEqual, render.ModeCluster)
				So(view.Render.Cluster.Markers, ShouldHaveLength, 2)
				So(view.Render.Heatmap, ShouldBeNil)
				So(view.CacheState, ShouldEqual, invalidation.StateIdle)
			})

			Convey("And the dataset key uses the normalized constabulary", func() {
				So(view.Dataset, ShouldEqual, base+"/split_data/('Avon_and_Somerset'%2C).csv")
			})

			Convey("And the options come from the whole dataset", func() {
				So(view.Options.CrimeTypes, ShouldResemble, []string{"Burglary", "Robbery"})
				So(view.Options.Months, ShouldResemble, []string{"2023-01"})
			})
		})

		Convey("When exploring a low fidelity selection", func() {
			view, err := svc.Explore(ctx, service.Request{Selection: model.Selection{
				Fidelity:     model.FidelityLow,
				CrimeType:    "Burglary",
				Constabulary: "ignored",
				Month:        "ignored",
			}})

			Convey("Then counts are summed into a heatmap", func() {
				So(err, ShouldBeNil)
				So(view.Total, ShouldEqual, 8)
				So(view.Status, ShouldEqual, "Showing 8 Burglary crimes across all constabularies.")
				So(view.Render.Mode, ShouldEqual, render.ModeHeatmap)
				So(view.Render.Heatmap.MaxVal, ShouldEqual, 5)
				So(view.Render.Heatmap.Points, ShouldHaveLength, 2)
				So(view.Selection.Constabulary, ShouldBeEmpty)
			})
		})

		Convey("When nothing matches", func() {
			view, err := svc.Explore(ctx, service.Request{Selection: highSelection("Arson")})

			Convey("Then the run reports no data without a render spec", func() {
				So(err, ShouldBeNil)
				So(view.NoData, ShouldBeTrue)
				So(view.Total, ShouldEqual, 0)
				So(view.Render, ShouldBeNil)
				So(view.Status, ShouldEqual, "Showing 0 Arson crimes in Avon and Somerset for 2023-01.")
				So(view.Warning, ShouldEqual, "No data available for the selected filters.")
			})
		})

		Convey("When the month is not in the dataset", func() {
			sel := highSelection("Burglary")
			sel.Month = "2022-12"
			view, err := svc.Explore(ctx, service.Request{Selection: sel})

			Convey("Then the run reports no data for that month", func() {
				So(err, ShouldBeNil)
				So(view.NoData, ShouldBeTrue)
				So(view.Records, ShouldEqual, 0)
				So(view.Options.Months, ShouldResemble, []string{"2023-01"})
				So(view.Status, ShouldEqual, "Showing 0 Burglary crimes in Avon and Somerset for 2022-12.")
			})
		})

		Convey("When the selection is incomplete", func() {
			sel := highSelection("Burglary")
			sel.Month = ""
			_, err := svc.Explore(ctx, service.Request{Selection: sel})

			Convey("Then an invalid selection error is returned", func() {
				So(errors.Is(err, service.ErrInvalidSelection), ShouldBeTrue)
				So(errors.Is(err, model.ErrIncompleteSelection), ShouldBeTrue)
				So(src.loadCount(avon.Location), ShouldEqual, 0)
			})
		})

		Convey("When the dataset cannot be loaded", func() {
			sel := highSelection("Burglary")
			sel.Constabulary = "Kent"
			view, err := svc.Explore(ctx, service.Request{Selection: sel})

			Convey("Then the error is surfaced with a warning", func() {
				So(errors.Is(err, registry.ErrDatasetUnavailable), ShouldBeTrue)
				So(view.Warning, ShouldNotBeEmpty)
				So(view.Render, ShouldBeNil)
			})
		})

		Convey("When the same selection is explored twice", func() {
			first, err := svc.Explore(ctx, service.Request{Selection: highSelection("Burglary")})
			So(err, ShouldBeNil)
			_, err = svc.Explore(ctx, service.Request{SessionID: first.SessionID, Selection: highSelection("Robbery")})
			So(err, ShouldBeNil)

			Convey("Then the dataset is fetched once", func() {
				So(src.loadCount(avon.Location), ShouldEqual, 1)
			})
		})
	})
}

func TestExploreCountedIncidents(t *testing.T) {
	Convey("Given a constabulary dataset with counted incidents", t, func() {
		ctx := context.Background()
		src := newStubSource()
		svc, reg := newService(src)
		avon := avonKey(reg)
		src.datasets[avon.Location] = &model.Dataset{
			Fidelity:  model.FidelityHigh,
			HasCounts: true,
			Records: []model.Record{
				{Constabulary: "Avon and Somerset", CrimeType: "Theft", Month: "2023-01", Latitude: 51.40, Longitude: -2.50, Count: 2, HasCount: true},
				{Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2023-01", Latitude: 51.45, Longitude: -2.58, Count: 1, HasCount: true},
				{Constabulary: "Avon and Somerset", CrimeType: "Theft", Month: "2023-01", Latitude: 51.38, Longitude: -2.36, Count: 5, HasCount: true},
			},
		}

		Convey("When exploring thefts", func() {
			view, err := svc.Explore(ctx, service.Request{Selection: highSelection("Theft")})

			Convey("Then two markers are drawn, largest count first", func() {
				So(err, ShouldBeNil)
				So(view.Records, ShouldEqual, 2)
				So(view.Total, ShouldEqual, 7)
				So(view.Status, ShouldEqual, "Showing 2 Theft crimes in Avon and Somerset for 2023-01.")
				markers := view.Render.Cluster.Markers
				So(markers, ShouldHaveLength, 2)
				So(markers[0].Tooltip, ShouldEqual, "Crimes: 5")
				So(markers[1].Tooltip, ShouldEqual, "Crimes: 2")
			})
		})
	})
}

func TestClearGesture(t *testing.T) {
	Convey("Given a session with a warm cache", t, func() {
		ctx := context.Background()
		src := newStubSource()
		svc, reg := newService(src)
		avon := avonKey(reg)
		src.datasets[avon.Location] = &model.Dataset{
			Fidelity: model.FidelityHigh,
			Records: []model.Record{
				{Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2023-01", Latitude: 51.45, Longitude: -2.58},
			},
		}
		view, err := svc.Explore(ctx, service.Request{Selection: highSelection("Burglary")})
		So(err, ShouldBeNil)
		session := view.SessionID
		So(src.loadCount(avon.Location), ShouldEqual, 1)

		Convey("When exploring with a new clear gesture", func() {
			view, err := svc.Explore(ctx, service.Request{
				SessionID:    session,
				Selection:    highSelection("Burglary"),
				ClearGesture: "gesture-1",
			})

			Convey("Then the cache is cleared and the dataset reloaded once", func() {
				So(err, ShouldBeNil)
				So(view.Cleared, ShouldBeTrue)
				So(view.CacheState, ShouldEqual, invalidation.StateIdle)
				So(src.loadCount(avon.Location), ShouldEqual, 2)
			})

			Convey("And replaying the gesture does not clear again", func() {
				again, err := svc.Explore(ctx, service.Request{
					SessionID:    session,
					Selection:    highSelection("Burglary"),
					ClearGesture: "gesture-1",
				})
				So(err, ShouldBeNil)
				So(again.Cleared, ShouldBeFalse)
				So(src.loadCount(avon.Location), ShouldEqual, 2)
			})
		})

		Convey("When a standalone clear is requested", func() {
			res, err := svc.ClearCache(ctx, session, "gesture-2")

			Convey("Then the session waits for one re-run", func() {
				So(err, ShouldBeNil)
				So(res.Cleared, ShouldBeTrue)
				So(res.Rerun, ShouldBeTrue)
				So(res.CacheState, ShouldEqual, invalidation.StatePendingClear)
				So(reg.Cached(), ShouldEqual, 0)
			})

			Convey("And a second gesture while pending is ignored", func() {
				res, err := svc.ClearCache(ctx, session, "gesture-3")
				So(err, ShouldBeNil)
				So(res.Cleared, ShouldBeFalse)
			})

			Convey("And the next run settles the session", func() {
				view, err := svc.Explore(ctx, service.Request{SessionID: session, Selection: highSelection("Burglary")})
				So(err, ShouldBeNil)
				So(view.Cleared, ShouldBeFalse)
				So(view.CacheState, ShouldEqual, invalidation.StateIdle)
				So(src.loadCount(avon.Location), ShouldEqual, 2)
			})
		})

		Convey("When one new session id is first used by concurrent clears", func() {
			id := uuid.NewString()
			var wg sync.WaitGroup
			var mu sync.Mutex
			cleared := 0
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res, err := svc.ClearCache(ctx, id, fmt.Sprintf("gesture-%d", i))
					if err == nil && res.Cleared {
						mu.Lock()
						cleared++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()

			Convey("Then they share one session and only one clear runs", func() {
				So(cleared, ShouldEqual, 1)
				res, err := svc.ClearCache(ctx, id, "gesture-late")
				So(err, ShouldBeNil)
				So(res.CacheState, ShouldEqual, invalidation.StatePendingClear)
			})
		})

		Convey("When a clear has no gesture id", func() {
			_, err := svc.ClearCache(ctx, session, "")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrMissingGesture), ShouldBeTrue)
			})
		})
	})
}

func TestOptionsAndConstabularies(t *testing.T) {
	Convey("Given a source with an index and a nationwide dataset", t, func() {
		ctx := context.Background()
		src := newStubSource()
		src.names = []string{"Kent", "Avon and Somerset", "Kent", ""}
		svc, reg := newService(src)
		low, err := reg.Resolve(model.FidelityLow, "")
		So(err, ShouldBeNil)
		src.datasets[low.Location] = &model.Dataset{
			Fidelity: model.FidelityLow,
			Records: []model.Record{
				{CrimeType: "Robbery", Month: "2023-02"},
				{CrimeType: "Burglary", Month: "2023-01"},
			},
		}

		Convey("When listing constabularies", func() {
			opts, err := svc.Constabularies(ctx)

			Convey("Then they are distinct, sorted and carry slugs", func() {
				So(err, ShouldBeNil)
				So(opts, ShouldResemble, []registry.ConstabularyOption{
					{Name: "Avon and Somerset", Slug: "Avon_and_Somerset"},
					{Name: "Kent", Slug: "Kent"},
				})
			})
		})

		Convey("When listing options of the nationwide dataset", func() {
			view, err := svc.Options(ctx, model.FidelityLow, "")

			Convey("Then crime types and months are derived from it", func() {
				So(err, ShouldBeNil)
				So(view.Dataset.Slug, ShouldEqual, registry.NationwideSlug)
				So(view.Options.CrimeTypes, ShouldResemble, []string{"Burglary", "Robbery"})
				So(view.Options.Months, ShouldResemble, []string{"2023-01", "2023-02"})
			})
		})

		Convey("When listing high fidelity options without a constabulary", func() {
			_, err := svc.Options(ctx, model.FidelityHigh, "")

			Convey("Then the selection is rejected", func() {
				So(errors.Is(err, service.ErrInvalidSelection), ShouldBeTrue)
			})
		})
	})
}

func TestPrefetch(t *testing.T) {
	Convey("Given a service with prefetching enabled", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		src := newStubSource()
		src.names = []string{"Kent"}
		svc, reg := newService(src, service.WithPrefetch(2, 16))
		kent, err := reg.Resolve(model.FidelityHigh, "Kent")
		So(err, ShouldBeNil)
		low, err := reg.Resolve(model.FidelityLow, "")
		So(err, ShouldBeNil)
		src.datasets[kent.Location] = &model.Dataset{Fidelity: model.FidelityHigh}
		src.datasets[low.Location] = &model.Dataset{Fidelity: model.FidelityLow}

		Convey("When the service starts", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then every dataset ends up cached", func() {
				deadline := time.Now().Add(2 * time.Second)
				for reg.Cached() < 2 && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(reg.Cached(), ShouldEqual, 2)
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a service without prefetching", t, func() {
		svc, _ := newService(newStubSource())

		Convey("When prefetch is requested", func() {
			_, err := svc.Prefetch(context.Background())

			Convey("Then it reports prefetch as disabled", func() {
				So(errors.Is(err, service.ErrPrefetchDisabled), ShouldBeTrue)
			})
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given no registry", t, func() {
		_, err := service.New(nil)

		Convey("Then construction fails", func() {
			So(errors.Is(err, service.ErrNoRegistry), ShouldBeTrue)
		})
	})

	Convey("Given a small session limit", t, func() {
		svc, _ := newService(newStubSource(), service.WithSessionLimit(2))

		Convey("When more sessions are created", func() {
			a := svc.NewSession(context.Background())
			b := svc.NewSession(context.Background())
			c := svc.NewSession(context.Background())

			Convey("Then only the newest are tracked", func() {
				So(a, ShouldNotEqual, b)
				So(b, ShouldNotEqual, c)
				So(svc.GetStats()["sessions"], ShouldEqual, 2)
			})
		})
	})
}
