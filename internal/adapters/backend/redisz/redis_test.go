package redisz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/ladder/internal/adapters/backend"
	"github.com/okian/ladder/internal/adapters/backend/cursor"
	"github.com/okian/ladder/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// unreachable returns a client whose every command fails to dial.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestKeys(t *testing.T) {
	Convey("Given a backend with a custom prefix", t, func() {
		b := New("eu", unreachable(), WithKeyPrefix("game"))

		Convey("Then keys follow the board layout", func() {
			So(b.BoardKey(model.Filters{Social: model.SocialFriends, Time: model.TimeDaily}), ShouldEqual, "game:friends:daily")
			So(b.PlayerKey("p7"), ShouldEqual, "game:player:p7")
		})

		Convey("Then the default prefix is used when none is given", func() {
			So(New("eu", unreachable()).BoardKey(model.DefaultFilters()), ShouldEqual, "ladder:global:all_time")
		})

		Convey("Then every filter pair has a board", func() {
			So(len(boards()), ShouldEqual, 6)
		})
	})
}

func TestBackend_Errors(t *testing.T) {
	ctx := context.Background()

	Convey("Given a backend whose server cannot be reached", t, func() {
		client := unreachable()
		defer client.Close()
		b := New("eu", client, WithSelf("me"))

		Convey("Then TopCursor needs no round trip", func() {
			c, err := b.TopCursor(ctx, model.DefaultFilters())
			So(err, ShouldBeNil)
			st, err := cursor.Decode(c)
			So(err, ShouldBeNil)
			So(st.Source, ShouldEqual, "eu")
			So(st.Offset, ShouldEqual, 0)
		})

		Convey("Then page fetches fail transiently", func() {
			c, _ := b.TopCursor(ctx, model.DefaultFilters())
			_, err := b.FetchPage(ctx, c, 10)
			So(err, ShouldWrap, backend.ErrTransient)
		})

		Convey("Then foreign and malformed cursors are rejected before any I/O", func() {
			foreign, _ := cursor.Encode(cursor.New("us", model.DefaultFilters(), 0))
			_, err := b.FetchPage(ctx, foreign, 10)
			So(err, ShouldWrap, backend.ErrInvalidCursor)

			_, err = b.FetchPage(ctx, model.NewCursor("%%%"), 10)
			So(err, ShouldWrap, backend.ErrInvalidCursor)
		})

		Convey("Then submit without a requesting player is permanent", func() {
			anon := New("eu", client)
			So(anon.Submit(ctx, 3), ShouldWrap, backend.ErrPermanent)
		})
	})

	Convey("Given client errors", t, func() {
		So(classify("x", redis.Nil), ShouldWrap, backend.ErrNotFound)
		So(classify("x", context.Canceled), ShouldWrap, context.Canceled)
		So(errors.Is(classify("x", context.Canceled), backend.ErrTransient), ShouldBeFalse)
		So(classify("x", errors.New("conn reset")), ShouldWrap, backend.ErrTransient)
	})

	Convey("Given an empty address", t, func() {
		_, err := NewClient(ctx, "")
		So(err, ShouldNotBeNil)
	})
}
