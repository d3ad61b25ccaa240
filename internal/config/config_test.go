package config_test

import (
	"testing"
	"time"

	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.PageSize, convey.ShouldEqual, 25)
			convey.So(cfg.PersonalBestLabel, convey.ShouldEqual, "Personal Best")
			convey.So(cfg.RebuildInterval(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.BreakerTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(len(cfg.Sources), convey.ShouldEqual, 1)
			convey.So(cfg.Sources[0].Kind, convey.ShouldEqual, config.KindMemory)
			convey.So(cfg.Validate(), convey.ShouldBeNil)

			f, err := cfg.Filters()
			convey.So(err, convey.ShouldBeNil)
			convey.So(f, convey.ShouldResemble, model.DefaultFilters())
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty addr", func(c *config.Config) { c.Addr = "" }},
		{"zero page size", func(c *config.Config) { c.PageSize = 0 }},
		{"zero leaderboard limit", func(c *config.Config) { c.MaxLeaderboardLimit = 0 }},
		{"negative rebuild interval", func(c *config.Config) { c.RebuildIntervalMS = -1 }},
		{"unknown social scope", func(c *config.Config) { c.SocialScope = "clan" }},
		{"unknown time scope", func(c *config.Config) { c.TimeScope = "hourly" }},
		{"unnamed source", func(c *config.Config) { c.Sources[0].Name = "" }},
		{"duplicate source", func(c *config.Config) { c.Sources = append(c.Sources, c.Sources[0]) }},
		{"unknown kind", func(c *config.Config) { c.Sources[0].Kind = "kafka" }},
		{"inverted latency", func(c *config.Config) {
			c.Sources[0].LatencyMinMS, c.Sources[0].LatencyMaxMS = 10, 5
		}},
		{"redis without addr", func(c *config.Config) {
			c.Sources = append(c.Sources, config.Source{Name: "r", Kind: config.KindRedis, Enabled: true})
		}},
		{"http without url", func(c *config.Config) {
			c.Sources = append(c.Sources, config.Source{Name: "h", Kind: config.KindHTTP, Enabled: true})
		}},
	}

	convey.Convey("Given invalid configurations", t, func() {
		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)
			convey.So(cfg.Validate(), convey.ShouldWrap, config.ErrInvalidConfig)
		}
	})

	convey.Convey("Given a disabled remote source without an address", t, func() {
		cfg := config.New()
		cfg.Sources = append(cfg.Sources, config.Source{Name: "r", Kind: config.KindRedis})

		convey.Convey("Then it is accepted", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
