package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("LADDER_ADDR", ":8080")
			_ = os.Setenv("LADDER_PAGE_SIZE", "50")
			_ = os.Setenv("LADDER_PLAYER_ID", "p-7")
			_ = os.Setenv("LADDER_TIME_SCOPE", "weekly")
			_ = os.Setenv("LADDER_AVATAR_TIMEOUT_MS", "750")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.PageSize, convey.ShouldEqual, 50)
				convey.So(cfg.PlayerID, convey.ShouldEqual, "p-7")
				convey.So(cfg.AvatarTimeout(), convey.ShouldEqual, 750*time.Millisecond)
				f, _ := cfg.Filters()
				convey.So(f.Time, convey.ShouldEqual, model.TimeWeekly)
			})
		})

		convey.Convey("When loading config with a YAML file listing sources", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
rebuild_interval_ms: 0
sources:
  - name: arcade
    kind: memory
    enabled: true
    latency_min_ms: 5
    latency_max_ms: 20
    players:
      - id: a1
        name: Ada
        value: 900
        avatar: https://img.example/a1.png
      - id: a2
        name: Bo
        value: 700
        friend: true
  - name: league
    kind: redis
    addr: "localhost:6379"
    key_prefix: lb
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LADDER_CONFIG", tmpFile)
			_ = os.Setenv("LADDER_ADDR", ":7070")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the file replaces the default sources", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.RebuildInterval(), convey.ShouldEqual, time.Duration(0))
				convey.So(len(cfg.Sources), convey.ShouldEqual, 2)

				arcade := cfg.Sources[0]
				convey.So(arcade.Name, convey.ShouldEqual, "arcade")
				convey.So(len(arcade.Players), convey.ShouldEqual, 2)
				convey.So(arcade.Players[0].AvatarRef, convey.ShouldEqual, "https://img.example/a1.png")
				convey.So(arcade.Players[1].Friend, convey.ShouldBeTrue)
				lo, hi := arcade.Latency()
				convey.So(lo, convey.ShouldEqual, 5*time.Millisecond)
				convey.So(hi, convey.ShouldEqual, 20*time.Millisecond)

				league := cfg.Sources[1]
				convey.So(league.Kind, convey.ShouldEqual, config.KindRedis)
				convey.So(league.Enabled, convey.ShouldBeFalse)
				convey.So(league.KeyPrefix, convey.ShouldEqual, "lb")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile("addr: [unclosed")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LADDER_CONFIG", tmpFile)

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("LADDER_CONFIG", "/nonexistent/ladder.yaml")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("LADDER_PAGE_SIZE", "lots")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When loading config that fails validation", func() {
			_ = os.Setenv("LADDER_SOCIAL_SCOPE", "guild")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"LADDER_CONFIG",
		"LADDER_ADDR",
		"LADDER_PAGE_SIZE",
		"LADDER_PLAYER_ID",
		"LADDER_TIME_SCOPE",
		"LADDER_SOCIAL_SCOPE",
		"LADDER_AVATAR_TIMEOUT_MS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "ladder-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
