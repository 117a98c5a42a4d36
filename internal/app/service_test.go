package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quillmetrics/quill/internal/adapters/repository"
	"github.com/quillmetrics/quill/internal/app"
	"github.com/quillmetrics/quill/internal/domain/anonymize"
	"github.com/quillmetrics/quill/internal/domain/model"
	"github.com/quillmetrics/quill/internal/domain/ratelimit"
	"github.com/quillmetrics/quill/internal/domain/token"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	testTokenID = "proj-1"
	testSecret  = "s3cret"
	testSalt    = "unit-test-salt"
)

// newService builds a service over in-memory collaborators with a generous
// per-token budget.
func newService(limit int) (*app.Service, *repository.MemoryStore) {
	tokens := token.NewMemoryStore()
	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	tokens.Put(token.Token{
		ID:         testTokenID,
		SecretHash: hash,
		Limit:      limit,
		Window:     time.Minute,
		Enabled:    true,
	})

	events := repository.NewMemoryStore()
	svc := app.New(
		token.NewVerifier(tokens),
		ratelimit.New(),
		anonymize.New(testSalt),
		events,
	)
	return svc, events
}

func ingestReq(raw string) app.IngestRequest {
	return app.IngestRequest{
		TokenID:       testTokenID,
		Secret:        testSecret,
		Action:        "view",
		Path:          "/docs",
		RawIdentifier: raw,
	}
}

func TestIngestGates(t *testing.T) {
	Convey("Given a service with one enabled token", t, func() {
		ctx := context.Background()
		svc, events := newService(100)

		storeEmpty := func() {
			n, err := events.TotalCount(ctx, "")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		}

		Convey("When a well-formed event is ingested", func() {
			err := svc.Ingest(ctx, ingestReq("198.51.100.7"))

			Convey("Then it is persisted with a pseudonymous visitor id", func() {
				So(err, ShouldBeNil)

				stored, err := events.Query(ctx, repository.Filter{})
				So(err, ShouldBeNil)
				So(stored, ShouldHaveLength, 1)
				So(stored[0].ID, ShouldNotBeEmpty)
				So(stored[0].TokenID, ShouldEqual, testTokenID)
				So(stored[0].Action, ShouldEqual, model.ActionView)
				So(stored[0].VisitorID, ShouldNotBeEmpty)
				So(stored[0].VisitorID, ShouldNotEqual, "198.51.100.7")
				So(stored[0].VisitorID, ShouldNotContainSubstring, "198.51.100.7")
				So(stored[0].TS.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When the same visitor submits twice", func() {
			So(svc.Ingest(ctx, ingestReq("198.51.100.7")), ShouldBeNil)
			So(svc.Ingest(ctx, ingestReq("198.51.100.7")), ShouldBeNil)

			Convey("Then both events carry the same pseudonym", func() {
				stored, err := events.Query(ctx, repository.Filter{})
				So(err, ShouldBeNil)
				So(stored, ShouldHaveLength, 2)
				So(stored[0].VisitorID, ShouldEqual, stored[1].VisitorID)
			})
		})

		Convey("When the action is outside the closed set", func() {
			req := ingestReq("198.51.100.7")
			req.Action = "purchase"
			err := svc.Ingest(ctx, req)

			Convey("Then the event is rejected before any side effect", func() {
				So(errors.Is(err, app.ErrInvalidInput), ShouldBeTrue)
				storeEmpty()
			})
		})

		Convey("When the path is blank", func() {
			req := ingestReq("198.51.100.7")
			req.Path = "  "
			err := svc.Ingest(ctx, req)

			So(errors.Is(err, app.ErrInvalidInput), ShouldBeTrue)
			storeEmpty()
		})

		Convey("When the raw identifier is missing", func() {
			err := svc.Ingest(ctx, ingestReq(""))

			So(errors.Is(err, app.ErrInvalidInput), ShouldBeTrue)
			storeEmpty()
		})

		Convey("When the secret is wrong", func() {
			req := ingestReq("198.51.100.7")
			req.Secret = "wrong"
			err := svc.Ingest(ctx, req)

			Convey("Then the event is rejected as unauthorized and not stored", func() {
				So(errors.Is(err, token.ErrUnauthorized), ShouldBeTrue)
				storeEmpty()
			})
		})

		Convey("When the token id is unknown", func() {
			req := ingestReq("198.51.100.7")
			req.TokenID = "nobody"
			err := svc.Ingest(ctx, req)

			So(errors.Is(err, token.ErrUnauthorized), ShouldBeTrue)
			storeEmpty()
		})
	})
}

func TestIngestRateLimit(t *testing.T) {
	Convey("Given a service with a budget of two per window", t, func() {
		ctx := context.Background()
		svc, events := newService(2)

		Convey("When three events arrive in one window", func() {
			So(svc.Ingest(ctx, ingestReq("v-1")), ShouldBeNil)
			So(svc.Ingest(ctx, ingestReq("v-2")), ShouldBeNil)
			err := svc.Ingest(ctx, ingestReq("v-3"))

			Convey("Then the third is rejected and not stored", func() {
				So(errors.Is(err, app.ErrRateLimited), ShouldBeTrue)

				n, cerr := events.TotalCount(ctx, "")
				So(cerr, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})
	})

	Convey("Given many concurrent submissions against a small budget", t, func() {
		ctx := context.Background()
		const budget = 10
		const attempts = 60
		svc, events := newService(budget)

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = svc.Ingest(ctx, ingestReq(fmt.Sprintf("v-%d", i)))
			}(i)
		}
		wg.Wait()

		Convey("Then exactly L events are persisted", func() {
			n, err := events.TotalCount(ctx, "")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, budget)
		})
	})
}

// failingStore always fails to append, to exercise the storage error path.
type failingStore struct {
	*repository.MemoryStore
}

func (f *failingStore) Append(context.Context, model.Event) error {
	return fmt.Errorf("%w: disk on fire", repository.ErrStorage)
}

func TestIngestStorageFailure(t *testing.T) {
	Convey("Given a service whose event store rejects appends", t, func() {
		ctx := context.Background()

		tokens := token.NewMemoryStore()
		hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
		So(err, ShouldBeNil)
		tokens.Put(token.Token{
			ID:         testTokenID,
			SecretHash: hash,
			Limit:      100,
			Window:     time.Minute,
			Enabled:    true,
		})

		svc := app.New(
			token.NewVerifier(tokens),
			ratelimit.New(),
			anonymize.New(testSalt),
			&failingStore{MemoryStore: repository.NewMemoryStore()},
		)

		Convey("When an otherwise valid event is ingested", func() {
			err := svc.Ingest(ctx, ingestReq("198.51.100.7"))

			Convey("Then the storage failure surfaces to the caller", func() {
				So(errors.Is(err, repository.ErrStorage), ShouldBeTrue)
			})
		})
	})
}

func TestStats(t *testing.T) {
	Convey("Given a service with a mixed set of accepted events", t, func() {
		ctx := context.Background()
		svc, _ := newService(100)

		submit := func(raw, path string) {
			req := ingestReq(raw)
			req.Path = path
			So(svc.Ingest(ctx, req), ShouldBeNil)
		}
		submit("v-1", "/a")
		submit("v-1", "/a")
		submit("v-2", "/a")
		submit("v-2", "/b")

		Convey("When the dashboard bundle is computed", func() {
			stats, err := svc.Stats(ctx, testTokenID, time.Time{}, 10)

			Convey("Then all four aggregates are consistent", func() {
				So(err, ShouldBeNil)
				So(stats.TotalCount, ShouldEqual, 4)
				So(stats.UniqueVisitors, ShouldEqual, 2)
				So(stats.UniqueVisitors, ShouldBeLessThanOrEqualTo, stats.TotalCount)
				So(stats.RecentCount, ShouldEqual, 4)
				So(stats.TopResources, ShouldResemble, []model.ResourceCount{
					{Path: "/a", Count: 3},
					{Path: "/b", Count: 1},
				})
			})
		})

		Convey("When a future since bound excludes everything", func() {
			stats, err := svc.Stats(ctx, testTokenID, time.Now().Add(time.Hour), 10)

			Convey("Then the recent aggregates are zero but the total is not", func() {
				So(err, ShouldBeNil)
				So(stats.TotalCount, ShouldEqual, 4)
				So(stats.UniqueVisitors, ShouldEqual, 0)
				So(stats.RecentCount, ShouldEqual, 0)
			})
		})

		Convey("When no events match the requested token", func() {
			stats, err := svc.Stats(ctx, "other-token", time.Time{}, 10)

			Convey("Then the bundle is empty with a non-nil resource slice", func() {
				So(err, ShouldBeNil)
				So(stats.TotalCount, ShouldEqual, 0)
				So(stats.TopResources, ShouldNotBeNil)
				So(stats.TopResources, ShouldBeEmpty)
			})
		})
	})
}
