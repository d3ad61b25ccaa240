package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("agg"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.rebuilds.WithLabelValues("started").Inc()
				count, err := testutil.GatherAndCount(registry, "test_agg_rebuilds_total")
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 1)
			})
		})

		Convey("When creating two managers on the same registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording range fetch metrics", func() {
			before := testutil.ToFloat64(globalManager.pageFetches.WithLabelValues("local", "forward", "ok"))
			RecordPageFetch("local", "forward", "ok")
			RecordPageFetchLatency("local", 3)
			RecordDetailLookup("local", "ok")
			RecordCursorCache("local", "forward", "hit")
			RecordRangeFetch("local", "ok", 12)

			Convey("Then the page counter advances", func() {
				after := testutil.ToFloat64(globalManager.pageFetches.WithLabelValues("local", "forward", "ok"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording aggregation metrics", func() {
			UpdateMergedEntries(42)
			UpdateMergeGeneration(7)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.mergedEntries), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.mergeGeneration), ShouldEqual, 7)
			})

			Convey("And the other recorders do not panic", func() {
				So(func() {
					RecordRebuild("completed")
					RecordRebuildDuration(25)
					RecordSourceFailure("remote")
					RecordMergeDuplicates("remote", 2)
					RecordNextAbove("cached")
					UpdateQueueSize("avatar", 3)
					RecordQueueRejection("avatar", "full")
					RecordJob("submit", "ok", 1)
					UpdateAvatarCacheSize(9)
					UpdateBreakerState("remote", 2)
					RecordHTTPRequest("next", "GET", "200")
					RecordHTTPRequestDuration("next", "GET", "200", 1)
					RecordErrorByComponent("rangefetch", "page_fetch")
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(10)
					RecordSystemGCPauseTime(0.2)
				}, ShouldNotPanic)
			})
		})

		Convey("When asking for the registry", func() {
			Convey("Then it is the custom registry", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
