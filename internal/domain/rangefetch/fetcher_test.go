package rangefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/okian/ladder/internal/adapters/backend/memory"
	"github.com/okian/ladder/internal/domain/identity"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testPageSize = 25

func board(n int, opts ...memory.Option) *memory.Backend {
	players := make([]memory.Player, 0, n)
	for i := 1; i <= n; i++ {
		players = append(players, memory.Player{
			ID:    fmt.Sprintf("p%03d", i),
			Name:  fmt.Sprintf("Player %d", i),
			Value: int64(10000 - i*10),
		})
	}
	return memory.New("test", append([]memory.Option{memory.WithPlayers(players...)}, opts...)...)
}

type recordingAvatars struct {
	mu    sync.Mutex
	calls map[string]string
}

func (r *recordingAvatars) FetchAvatarImage(ref, key string, onArrived func(string, error)) {
	r.mu.Lock()
	if r.calls == nil {
		r.calls = make(map[string]string)
	}
	r.calls[key] = ref
	r.mu.Unlock()
	onArrived(key, nil)
}

func assertContiguous(entries []model.ScoreEntry, first, last int) {
	So(len(entries), ShouldEqual, last-first+1)
	for i, e := range entries {
		So(e.Rank, ShouldEqual, first+i)
	}
}

func TestFetchRange_ContainedRanges(t *testing.T) {
	ctx := context.Background()
	ranges := [][2]int{{1, 1}, {1, 25}, {3, 7}, {20, 30}, {25, 26}, {26, 50}, {40, 90}, {1, 100}, {99, 100}}

	Convey("Given a board of 100 players", t, func() {
		src := board(100)

		Convey("Then a fresh fetcher returns exactly the requested ranks", func() {
			for _, r := range ranges {
				f := New("test", src, WithPageSize(testPageSize))
				res, err := f.FetchRange(ctx, r[0], r[1], false)
				So(err, ShouldBeNil)
				So(res.Anchor, ShouldEqual, r[0])
				assertContiguous(res.Entries, r[0], r[1])
			}
		})

		Convey("Then a shared fetcher does the same whatever its cache holds", func() {
			f := New("test", src, WithPageSize(testPageSize))
			for _, r := range append(ranges, [2]int{10, 40}, [2]int{60, 70}, [2]int{30, 65}, [2]int{1, 3}) {
				res, err := f.FetchRange(ctx, r[0], r[1], false)
				So(err, ShouldBeNil)
				assertContiguous(res.Entries, r[0], r[1])
			}
		})

		Convey("Then identical calls give identical entries", func() {
			f := New("test", src, WithPageSize(testPageSize))
			a, err := f.FetchRange(ctx, 12, 61, false)
			So(err, ShouldBeNil)
			b, err := f.FetchRange(ctx, 12, 61, false)
			So(err, ShouldBeNil)
			So(b, ShouldResemble, a)
		})
	})
}

func TestFetchRange_CursorCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fetcher over 100 players", t, func() {
		src := board(100)
		f := New("test", src, WithPageSize(testPageSize))

		Convey("When the first page is fetched", func() {
			_, err := f.FetchRange(ctx, 1, 25, false)
			So(err, ShouldBeNil)
			So(src.TopCursorCalls(), ShouldEqual, 1)

			Convey("Then the forward slot anchors the next page and the backward slot is empty", func() {
				So(f.Cache().Get(Forward).Anchor, ShouldEqual, 26)
				So(f.Cache().Get(Backward).Empty(), ShouldBeTrue)
			})

			Convey("Then the abutting page resumes from the cache", func() {
				res, err := f.FetchRange(ctx, 26, 50, false)
				So(err, ShouldBeNil)
				assertContiguous(res.Entries, 26, 50)
				So(src.TopCursorCalls(), ShouldEqual, 1)
			})

			Convey("Then a range inside the cached page also resumes", func() {
				_, err := f.FetchRange(ctx, 30, 33, false)
				So(err, ShouldBeNil)
				So(src.TopCursorCalls(), ShouldEqual, 1)
			})

			Convey("Then a range on another page starts over", func() {
				_, err := f.FetchRange(ctx, 60, 61, false)
				So(err, ShouldBeNil)
				So(src.TopCursorCalls(), ShouldEqual, 2)
			})
		})

		Convey("When walks leave a backward cursor behind", func() {
			_, err := f.FetchRange(ctx, 1, 50, false)
			So(err, ShouldBeNil)
			_, err = f.FetchRange(ctx, 51, 60, false)
			So(err, ShouldBeNil)
			So(f.Cache().Get(Backward).Anchor, ShouldEqual, 26)
			So(f.Cache().Get(Forward).Anchor, ShouldEqual, 76)

			res, err := f.FetchRange(ctx, 10, 40, false)

			Convey("Then a request ending on that page walks backward in rank order", func() {
				So(err, ShouldBeNil)
				So(res.Anchor, ShouldEqual, 10)
				assertContiguous(res.Entries, 10, 40)
				So(src.TopCursorCalls(), ShouldEqual, 1)
			})

			Convey("Then the backward walk refreshes both slots", func() {
				So(f.Cache().Get(Forward).Anchor, ShouldEqual, 51)
				So(f.Cache().Get(Backward).Empty(), ShouldBeTrue)
			})
		})
	})
}

func TestFetchRange_Edges(t *testing.T) {
	ctx := context.Background()

	Convey("Given a board of 60 players", t, func() {
		src := board(60)
		f := New("test", src, WithPageSize(testPageSize))

		Convey("Then an unbounded range stops at the end of the board", func() {
			res, err := f.FetchRange(ctx, 50, model.Unbounded, false)
			So(err, ShouldBeNil)
			assertContiguous(res.Entries, 50, 60)
			So(f.Cache().Get(Forward).Empty(), ShouldBeTrue)
		})

		Convey("Then the whole board comes back for [1, unbounded]", func() {
			res, err := f.FetchRange(ctx, 1, model.Unbounded, false)
			So(err, ShouldBeNil)
			assertContiguous(res.Entries, 1, 60)
		})

		Convey("Then a range past the end is empty but not an error", func() {
			res, err := f.FetchRange(ctx, 100, 120, false)
			So(err, ShouldBeNil)
			So(res.Entries, ShouldBeEmpty)
		})

		Convey("Then malformed ranges are rejected", func() {
			_, err := f.FetchRange(ctx, 0, 5, false)
			So(err, ShouldWrap, ErrInvalidRange)
			_, err = f.FetchRange(ctx, 6, 5, false)
			So(err, ShouldWrap, ErrInvalidRange)
			So(src.TopCursorCalls(), ShouldEqual, 0)
		})

		Convey("Then an empty board yields no entries", func() {
			empty := New("test", memory.New("test"), WithPageSize(testPageSize))
			res, err := empty.FetchRange(ctx, 1, model.Unbounded, true)
			So(err, ShouldBeNil)
			So(res.Entries, ShouldBeEmpty)
			So(res.Anchor, ShouldEqual, 1)
		})
	})
}

func TestFetchRange_Failures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a page of 5 entries where one detail lookup fails", t, func() {
		src := board(5)
		src.FailDetail("p003", errors.New("profile service down"))
		f := New("test", src, WithPageSize(testPageSize))

		res, err := f.FetchRange(ctx, 1, 5, true)

		Convey("Then the whole fetch fails with no entries", func() {
			So(err, ShouldWrap, ErrDetailLookup)
			So(res.Entries, ShouldBeEmpty)
		})

		Convey("Then every sibling lookup was still awaited", func() {
			So(src.DetailCalls(), ShouldEqual, 5)
		})
	})

	Convey("Given a backend failing pages", t, func() {
		src := board(60)
		f := New("test", src, WithPageSize(testPageSize))
		_, err := f.FetchRange(ctx, 1, 25, false)
		So(err, ShouldBeNil)
		src.FailPages(errors.New("503"))

		res, err := f.FetchRange(ctx, 26, 60, false)

		Convey("Then the fetch fails without partial results", func() {
			So(err, ShouldWrap, ErrPageFetch)
			So(res.Entries, ShouldBeNil)
		})
	})

	Convey("Given a backend refusing the top cursor", t, func() {
		src := board(10)
		src.SetUnavailable(true)
		f := New("test", src)
		_, err := f.FetchRange(ctx, 1, 10, false)
		So(err, ShouldWrap, ErrPageFetch)
	})
}

func TestFetchRange_Details(t *testing.T) {
	ctx := context.Background()

	Convey("Given players with avatars and a requesting player", t, func() {
		src := memory.New("test", memory.WithPlayers(
			memory.Player{ID: "a", Name: "Ann", Value: 50, AvatarRef: "https://img/a.png"},
			memory.Player{ID: "b", Name: "Ben", Value: 40},
			memory.Player{ID: "c", Name: "Cat", Value: 30, AvatarRef: "https://img/c.png"},
		))
		who := identity.New()
		who.Set(model.Player{ID: "b"})
		avatars := &recordingAvatars{}
		var arrived sync.Map
		f := New("test", src,
			WithPageSize(2),
			WithIdentity(who),
			WithAvatarFetcher(avatars),
			WithDetailConcurrency(1),
			WithAvatarCallback(func(key string, err error) { arrived.Store(key, err) }),
		)

		res, err := f.FetchRange(ctx, 1, 3, true)
		So(err, ShouldBeNil)

		Convey("Then names resolve and avatar keys are derived", func() {
			So(res.Entries[0].DisplayName, ShouldEqual, "Ann")
			So(res.Entries[0].AvatarKey, ShouldEqual, AvatarKey("test", "a", "https://img/a.png"))
			So(res.Entries[1].HasAvatar(), ShouldBeFalse)
			So(res.Entries[2].HasAvatar(), ShouldBeTrue)
			So(res.Entries[0].Source, ShouldEqual, "test")
		})

		Convey("Then the requesting player is flagged", func() {
			So(res.Entries[1].IsRequestingPlayer, ShouldBeTrue)
			So(res.Entries[0].IsRequestingPlayer, ShouldBeFalse)
		})

		Convey("Then the image collaborator was asked once per avatar", func() {
			So(len(avatars.calls), ShouldEqual, 2)
			So(avatars.calls[res.Entries[2].AvatarKey], ShouldEqual, "https://img/c.png")
			_, ok := arrived.Load(res.Entries[0].AvatarKey)
			So(ok, ShouldBeTrue)
		})

		Convey("Then a fetch without details triggers nothing", func() {
			avatars.calls = nil
			plain, err := f.FetchRange(ctx, 1, 3, false)
			So(err, ShouldBeNil)
			So(plain.Entries[0].HasAvatar(), ShouldBeFalse)
			So(avatars.calls, ShouldBeNil)
		})
	})

	Convey("Given a backend that marks the requesting row itself", t, func() {
		src := board(3, memory.WithSelf("p002"))
		f := New("test", src)
		res, err := f.FetchRange(ctx, 1, 3, false)
		So(err, ShouldBeNil)
		So(res.Entries[1].IsRequestingPlayer, ShouldBeTrue)
	})

	Convey("Given distinct inputs", t, func() {
		So(AvatarKey("s", "p", "r"), ShouldEqual, AvatarKey("s", "p", "r"))
		So(AvatarKey("s", "p", "r"), ShouldNotEqual, AvatarKey("s", "pr", ""))
	})
}

func TestFetchRangeAsync(t *testing.T) {
	Convey("Given an async fetch", t, func() {
		src := board(30)
		f := New("test", src, WithPageSize(10))

		type outcome struct {
			anchor  int
			entries []model.ScoreEntry
			msg     string
		}
		done := make(chan outcome, 1)
		ctx, cancel := context.WithCancel(context.Background())
		f.FetchRangeAsync(ctx, 5, 14, false, func(anchor int, entries []model.ScoreEntry, msg string) {
			done <- outcome{anchor, entries, msg}
		})
		cancel()

		Convey("Then it completes despite cancellation and reports through the handler", func() {
			select {
			case o := <-done:
				So(o.msg, ShouldBeEmpty)
				So(o.anchor, ShouldEqual, 5)
				assertContiguous(o.entries, 5, 14)
			case <-time.After(2 * time.Second):
				So("timeout", ShouldBeEmpty)
			}
		})
	})

	Convey("Given an async fetch that fails", t, func() {
		src := board(30)
		src.FailPages(errors.New("boom"))
		f := New("test", src)
		done := make(chan string, 1)
		var (
			got    []model.ScoreEntry
			anchor int
		)
		f.FetchRangeAsync(context.Background(), 1, 10, false, func(a int, entries []model.ScoreEntry, msg string) {
			anchor = a
			got = entries
			done <- msg
		})

		Convey("Then the handler gets anchor -1 and no entries", func() {
			msg := <-done
			So(msg, ShouldContainSubstring, "boom")
			So(got, ShouldBeEmpty)
			So(anchor, ShouldEqual, FailedAnchor)
			So(anchor, ShouldEqual, -1)
		})
	})
}
