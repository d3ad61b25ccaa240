package model

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSentinels(t *testing.T) {
	Convey("Given the sentinel entries", t, func() {
		Convey("Then NoScore and MaxEntry recognise themselves only", func() {
			So(NoScore().IsNoScore(), ShouldBeTrue)
			So(MaxEntry().IsMax(), ShouldBeTrue)
			So(NoScore().IsMax(), ShouldBeFalse)
			So(MaxEntry().IsNoScore(), ShouldBeFalse)
		})

		Convey("Then a real entry is neither", func() {
			e := ScoreEntry{Rank: 3, Value: 10, PlayerID: "p1"}
			So(e.IsMax(), ShouldBeFalse)
			So(e.IsNoScore(), ShouldBeFalse)
			So(e.HasAvatar(), ShouldBeFalse)
		})
	})
}

func TestPageRanks(t *testing.T) {
	Convey("Given a page of rows", t, func() {
		p := Page{Rows: []RawRow{{Rank: 26}, {Rank: 27}, {Rank: 28}}}

		Convey("Then first and last rank come from the rows", func() {
			So(p.FirstRank(), ShouldEqual, 26)
			So(p.LastRank(), ShouldEqual, 28)
		})

		Convey("Then an empty page reports zero", func() {
			So(Page{}.FirstRank(), ShouldEqual, 0)
			So(Page{}.LastRank(), ShouldEqual, 0)
		})
	})

	Convey("Given cursors", t, func() {
		So(PageCursor{}.Valid, ShouldBeFalse)
		So(NewCursor("abc").Valid, ShouldBeTrue)
	})
}

func TestFilters(t *testing.T) {
	cases := []struct {
		social, time string
		wantErr      bool
		want         string
	}{
		{"global", "all_time", false, "global:all_time"},
		{"FRIENDS", " weekly ", false, "friends:weekly"},
		{"", "", false, "global:all_time"},
		{"everyone", "daily", true, ""},
		{"global", "hourly", true, ""},
	}
	for _, tc := range cases {
		s, serr := ParseSocialScope(tc.social)
		ts, terr := ParseTimeScope(tc.time)
		gotErr := serr != nil || terr != nil
		if gotErr != tc.wantErr {
			t.Fatalf("parse(%q,%q) err=%v/%v wantErr=%v", tc.social, tc.time, serr, terr, tc.wantErr)
		}
		if !gotErr {
			if got := (Filters{Social: s, Time: ts}).String(); got != tc.want {
				t.Errorf("filters = %q, want %q", got, tc.want)
			}
		}
	}
	if DefaultFilters().String() != "global:all_time" {
		t.Errorf("unexpected default filters %q", DefaultFilters().String())
	}
}
