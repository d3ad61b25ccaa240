package httpsrc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/okian/ladder/internal/adapters/backend"
	"github.com/okian/ladder/internal/adapters/backend/memory"
	"github.com/okian/ladder/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRemoteBackend(t *testing.T) {
	ctx := context.Background()

	Convey("Given a remote source served from an in-memory board", t, func() {
		board := memory.New("remote", memory.WithSelf("me"), memory.WithPlayers(
			memory.Player{ID: "a", Name: "Alice", Value: 30, AvatarRef: "https://img/a.png"},
			memory.Player{ID: "b", Name: "Bob", Value: 20},
			memory.Player{ID: "me", Name: "Me", Value: 10},
		))
		srv := httptest.NewServer(NewHandler(board))
		defer srv.Close()
		b := New(srv.URL+"/", WithSelf("me"))

		Convey("When walking the board two rows at a time", func() {
			top, err := b.TopCursor(ctx, model.DefaultFilters())
			So(err, ShouldBeNil)
			p1, err := b.FetchPage(ctx, top, 2)
			So(err, ShouldBeNil)
			p2, err := b.FetchPage(ctx, p1.Next, 2)
			So(err, ShouldBeNil)

			Convey("Then rows and cursors round-trip the protocol", func() {
				So(p1.Rows[0].PlayerID, ShouldEqual, "a")
				So(p1.Rows[1].Rank, ShouldEqual, 2)
				So(p1.Previous.Valid, ShouldBeFalse)
				So(p2.Rows[0].IsSelf, ShouldBeTrue)
				So(p2.Next.Valid, ShouldBeFalse)
				So(p2.Previous.Valid, ShouldBeTrue)
			})
		})

		Convey("Then details carry avatar references", func() {
			d, err := b.FetchDetail(ctx, "a")
			So(err, ShouldBeNil)
			So(d.DisplayName, ShouldEqual, "Alice")
			So(d.AvatarRef, ShouldEqual, "https://img/a.png")
		})

		Convey("Then unknown players map to not found", func() {
			_, err := b.FetchDetail(ctx, "ghost")
			So(err, ShouldWrap, backend.ErrNotFound)
		})

		Convey("Then garbage cursors map to invalid cursor", func() {
			_, err := b.FetchPage(ctx, model.NewCursor("garbage!"), 2)
			So(err, ShouldWrap, backend.ErrInvalidCursor)
			_, err = b.FetchPage(ctx, model.PageCursor{}, 2)
			So(err, ShouldWrap, backend.ErrInvalidCursor)
		})

		Convey("Then the requesting player and their summary round-trip", func() {
			me, err := b.FetchSelf(ctx)
			So(err, ShouldBeNil)
			So(me, ShouldResemble, model.Player{ID: "me", DisplayName: "Me"})

			row, err := b.FetchSummary(ctx, model.DefaultFilters())
			So(err, ShouldBeNil)
			So(row, ShouldResemble, model.RawRow{Rank: 3, Value: 10, PlayerID: "me", DisplayName: "Me", IsSelf: true})
		})

		Convey("Then a player without a score has no summary", func() {
			board.SetSelf("newcomer")
			_, err := b.FetchSummary(ctx, model.DefaultFilters())
			So(err, ShouldWrap, backend.ErrNotFound)
		})

		Convey("Then submissions reach the board", func() {
			So(b.Submit(ctx, 99), ShouldBeNil)
			v, _ := board.Score("me")
			So(v, ShouldEqual, 99)
		})

		Convey("Then an unavailable board answers 503 and reads as transient", func() {
			board.SetUnavailable(true)
			_, err := b.TopCursor(ctx, model.DefaultFilters())
			So(err, ShouldWrap, backend.ErrTransient)
		})
	})

	Convey("Given a misbehaving server", t, func() {
		var status atomic.Int32
		status.Store(http.StatusInternalServerError)
		var sawPlayer atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawPlayer.Store(r.Header.Get(PlayerHeader))
			w.WriteHeader(int(status.Load()))
			_, _ = w.Write([]byte(`{"code":"x","message":"nope"}`))
		}))
		defer srv.Close()
		b := New(srv.URL, WithSelf("p1"))

		Convey("Then 5xx is transient", func() {
			_, err := b.FetchDetail(ctx, "p")
			So(err, ShouldWrap, backend.ErrTransient)
			So(err.Error(), ShouldContainSubstring, "nope")
			So(sawPlayer.Load(), ShouldEqual, "p1")
		})

		Convey("Then 4xx is permanent", func() {
			status.Store(http.StatusForbidden)
			err := b.Submit(ctx, 1)
			So(err, ShouldWrap, backend.ErrPermanent)
		})

		Convey("Then an unreachable server is transient", func() {
			dead := New("http://127.0.0.1:1")
			_, err := dead.TopCursor(ctx, model.DefaultFilters())
			So(err, ShouldWrap, backend.ErrTransient)
		})
	})
}
