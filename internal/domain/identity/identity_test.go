package identity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAccessor(t *testing.T) {
	Convey("Given an unresolved accessor", t, func() {
		a := New()

		Convey("Then waiting gives up with the context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err := a.PlayerID(ctx)
			So(err, ShouldWrap, ErrNotResolved)
			So(err, ShouldWrap, context.DeadlineExceeded)
			So(a.Resolved(), ShouldBeFalse)
		})

		Convey("When a waiter is blocked and the fetch completes", func() {
			got := make(chan string, 1)
			go func() {
				id, _ := a.PlayerID(context.Background())
				got <- id
			}()
			release := make(chan struct{})
			go func() {
				_, _ = a.Resolve(context.Background(), func(context.Context) (model.Player, error) {
					<-release
					return model.Player{ID: "p42", DisplayName: "Ada"}, nil
				})
			}()
			close(release)

			Convey("Then the waiter sees the id", func() {
				So(<-got, ShouldEqual, "p42")
				So(a.Resolved(), ShouldBeTrue)
				p, err := a.Player(context.Background())
				So(err, ShouldBeNil)
				So(p.DisplayName, ShouldEqual, "Ada")
			})
		})

		Convey("When Resolve is called repeatedly", func() {
			var calls atomic.Int32
			fetch := func(context.Context) (model.Player, error) {
				calls.Add(1)
				return model.Player{ID: "once"}, nil
			}
			id1, err1 := a.Resolve(context.Background(), fetch)
			id2, err2 := a.Resolve(context.Background(), fetch)

			Convey("Then the fetch runs once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(id1.ID, ShouldEqual, "once")
				So(id2.ID, ShouldEqual, "once")
				So(calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the fetch fails", func() {
			boom := errors.New("auth down")
			_, err := a.Resolve(context.Background(), func(context.Context) (model.Player, error) { return model.Player{}, boom })

			Convey("Then waiters get the failure", func() {
				So(err, ShouldEqual, boom)
				id, err := a.PlayerID(context.Background())
				So(id, ShouldBeEmpty)
				So(err, ShouldEqual, boom)
			})
		})

		Convey("When the player re-authenticates", func() {
			a.Set(model.Player{ID: "old"})
			a.Reset()

			Convey("Then the id is pending again until the next fetch", func() {
				So(a.Resolved(), ShouldBeFalse)
				a.Set(model.Player{ID: "new"})
				id, err := a.PlayerID(context.Background())
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "new")
			})
		})

		Convey("When the fetch panics", func() {
			got := make(chan error, 1)
			go func() {
				_, err := a.PlayerID(context.Background())
				got <- err
			}()
			So(func() {
				_, _ = a.Resolve(context.Background(), func(context.Context) (model.Player, error) {
					panic("provider crashed")
				})
			}, ShouldPanic)

			Convey("Then waiters are released with an error", func() {
				select {
				case err := <-got:
					So(err, ShouldEqual, ErrFetchPanicked)
				case <-time.After(time.Second):
					So("waiter still blocked", ShouldBeEmpty)
				}
				So(a.Resolved(), ShouldBeTrue)
			})
		})
	})
}
