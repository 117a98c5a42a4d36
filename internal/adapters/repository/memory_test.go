package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quillmetrics/quill/internal/adapters/repository"
	"github.com/quillmetrics/quill/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// stepClock returns times one second apart so every append gets a distinct,
// strictly increasing timestamp.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{now: start}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newEvent(tokenID string, action model.ActionKind, path, visitor string) model.Event {
	return model.Event{
		ID:        uuid.NewString(),
		TokenID:   tokenID,
		Action:    action,
		Path:      path,
		VisitorID: visitor,
	}
}

func TestMemoryStoreAppend(t *testing.T) {
	Convey("Given a store with an injected clock", t, func() {
		ctx := context.Background()
		start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore(repository.WithClock(newStepClock(start).Now))

		Convey("When an event with a caller-set timestamp is appended", func() {
			e := newEvent("proj-1", model.ActionView, "/docs", "v-1")
			e.TS = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
			So(store.Append(ctx, e), ShouldBeNil)

			Convey("Then the stored timestamp is assigned at persistence time", func() {
				got, err := store.Query(ctx, repository.Filter{})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].TS, ShouldEqual, start.Add(time.Second))
			})
		})

		Convey("When several events are appended", func() {
			for i := 0; i < 5; i++ {
				e := newEvent("proj-1", model.ActionView, "/docs", fmt.Sprintf("v-%d", i))
				So(store.Append(ctx, e), ShouldBeNil)
			}

			Convey("Then Query returns them in timestamp order", func() {
				got, err := store.Query(ctx, repository.Filter{})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 5)
				for i := 1; i < len(got); i++ {
					So(got[i-1].TS.Before(got[i].TS), ShouldBeTrue)
				}
			})
		})
	})
}

func TestMemoryStoreQuery(t *testing.T) {
	Convey("Given a store holding events for two tokens", t, func() {
		ctx := context.Background()
		start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore(repository.WithClock(newStepClock(start).Now))

		// proj-1: view /a, click /a, view /b; proj-2: download /a
		So(store.Append(ctx, newEvent("proj-1", model.ActionView, "/a", "v-1")), ShouldBeNil)
		So(store.Append(ctx, newEvent("proj-1", model.ActionClick, "/a", "v-1")), ShouldBeNil)
		So(store.Append(ctx, newEvent("proj-1", model.ActionView, "/b", "v-2")), ShouldBeNil)
		So(store.Append(ctx, newEvent("proj-2", model.ActionDownload, "/a", "v-3")), ShouldBeNil)

		Convey("When filtering by token", func() {
			got, err := store.Query(ctx, repository.Filter{TokenID: "proj-1"})
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 3)
		})

		Convey("When filtering by action and path together", func() {
			got, err := store.Query(ctx, repository.Filter{
				Action: model.ActionView,
				Path:   "/a",
			})
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			So(got[0].TokenID, ShouldEqual, "proj-1")
		})

		Convey("When filtering by a half-open time range", func() {
			// Events carry TS start+1s..start+4s; [start+2s, start+4s)
			// must keep exactly the second and third.
			got, err := store.Query(ctx, repository.Filter{
				Since: start.Add(2 * time.Second),
				Until: start.Add(4 * time.Second),
			})
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[0].Action, ShouldEqual, model.ActionClick)
			So(got[1].Path, ShouldEqual, "/b")
		})

		Convey("When a result limit is set", func() {
			got, err := store.Query(ctx, repository.Filter{Limit: 2})
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
		})

		Convey("When nothing matches", func() {
			got, err := store.Query(ctx, repository.Filter{Path: "/missing"})
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})
	})
}

func TestMemoryStoreAggregates(t *testing.T) {
	Convey("Given a store with a known event mix", t, func() {
		ctx := context.Background()
		start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore(repository.WithClock(newStepClock(start).Now))

		// proj-1: /a x3 (v-1 twice, v-2), /b x1 (v-2); proj-2: /a x1 (v-1)
		So(store.Append(ctx, newEvent("proj-1", model.ActionView, "/a", "v-1")), ShouldBeNil)
		So(store.Append(ctx, newEvent("proj-1", model.ActionView, "/a", "v-1")), ShouldBeNil)
		So(store.Append(ctx, newEvent("proj-1", model.ActionClick, "/a", "v-2")), ShouldBeNil)
		So(store.Append(ctx, newEvent("proj-1", model.ActionView, "/b", "v-2")), ShouldBeNil)
		So(store.Append(ctx, newEvent("proj-2", model.ActionView, "/a", "v-1")), ShouldBeNil)

		Convey("Then TotalCount scopes by token and '' means all", func() {
			n, err := store.TotalCount(ctx, "proj-1")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 4)

			all, err := store.TotalCount(ctx, "")
			So(err, ShouldBeNil)
			So(all, ShouldEqual, 5)
		})

		Convey("Then UniqueVisitors counts distinct pseudonyms", func() {
			n, err := store.UniqueVisitors(ctx, "proj-1", time.Time{})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			total, err := store.TotalCount(ctx, "proj-1")
			So(err, ShouldBeNil)
			So(n, ShouldBeLessThanOrEqualTo, total)
		})

		Convey("Then UniqueVisitors honors the since bound", func() {
			// Only the last proj-1 event (v-2, TS start+4s) is in range.
			n, err := store.UniqueVisitors(ctx, "proj-1", start.Add(4*time.Second))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("Then CountSince applies the same half-open lower bound", func() {
			n, err := store.CountSince(ctx, "proj-1", start.Add(3*time.Second))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
		})

		Convey("Then TopResources orders by count then path", func() {
			top, err := store.TopResources(ctx, "proj-1", 10)
			So(err, ShouldBeNil)
			So(top, ShouldResemble, []model.ResourceCount{
				{Path: "/a", Count: 3},
				{Path: "/b", Count: 1},
			})
		})

		Convey("Then TopResources breaks count ties by path ascending", func() {
			So(store.Append(ctx, newEvent("proj-1", model.ActionView, "/b", "v-3")), ShouldBeNil)
			So(store.Append(ctx, newEvent("proj-1", model.ActionView, "/b", "v-3")), ShouldBeNil)

			top, err := store.TopResources(ctx, "proj-1", 10)
			So(err, ShouldBeNil)
			So(top[0].Path, ShouldEqual, "/a")
			So(top[1].Path, ShouldEqual, "/b")
			So(top[0].Count, ShouldEqual, top[1].Count)
		})

		Convey("Then TopResources truncates to the requested limit", func() {
			top, err := store.TopResources(ctx, "proj-1", 1)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 1)
			So(top[0].Path, ShouldEqual, "/a")
		})

		Convey("Then TopResources rejects a non-positive limit", func() {
			_, err := store.TopResources(ctx, "proj-1", 0)
			So(err, ShouldEqual, repository.ErrInvalidLimit)
		})
	})
}

func TestMemoryStoreConcurrency(t *testing.T) {
	Convey("Given concurrent appenders and readers", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		const writers = 8
		const perWriter = 50

		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					e := newEvent("proj-1", model.ActionView, "/a", fmt.Sprintf("v-%d", w))
					_ = store.Append(ctx, e)
					_, _ = store.CountSince(ctx, "proj-1", time.Time{})
				}
			}(w)
		}
		wg.Wait()

		Convey("Then every append is recorded exactly once", func() {
			n, err := store.TotalCount(ctx, "proj-1")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, writers*perWriter)

			uniq, err := store.UniqueVisitors(ctx, "proj-1", time.Time{})
			So(err, ShouldBeNil)
			So(uniq, ShouldEqual, writers)
		})
	})
}
