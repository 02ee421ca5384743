package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManager(t *testing.T) {
	Convey("Given a metrics manager on its own registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithNamespace("test"),
			WithConstLabels(map[string]string{"run_id": "abc"}),
			WithRegistry(registry),
		)
		So(m.Registry() == registry, ShouldBeTrue)

		Convey("When recording a run", func() {
			m.RecordRows("train", 120)
			m.RecordRows("test", 30)
			m.RecordMissing("train", map[string]int{"mileage": 4, "height": 1})
			m.RecordColumns(18, 3)
			for i := 0; i < 5; i++ {
				m.IncTrees()
			}
			m.RecordRSquared(0.87)
			m.ObserveStage("fit", 1500*time.Millisecond)
			m.MarkSuccess(time.Unix(1700000000, 0))

			Convey("Then the values are exposed", func() {
				So(testutil.ToFloat64(m.rowsLoaded.WithLabelValues("train")), ShouldEqual, 120.0)
				So(testutil.ToFloat64(m.rowsLoaded.WithLabelValues("test")), ShouldEqual, 30.0)
				So(testutil.ToFloat64(m.missingValues.WithLabelValues("train", "mileage")), ShouldEqual, 4.0)
				So(testutil.ToFloat64(m.encodedColumns), ShouldEqual, 18.0)
				So(testutil.ToFloat64(m.droppedColumns), ShouldEqual, 3.0)
				So(testutil.ToFloat64(m.treesFitted), ShouldEqual, 5.0)
				So(testutil.ToFloat64(m.rSquared), ShouldEqual, 0.87)
				So(testutil.ToFloat64(m.stageDuration.WithLabelValues("fit")), ShouldEqual, 1.5)
				So(testutil.ToFloat64(m.lastSuccess), ShouldEqual, 1700000000.0)
			})

			Convey("Then the textfile carries namespace and run id", func() {
				path := filepath.Join(t.TempDir(), "metrics.prom")
				So(m.WriteTextfile(path), ShouldBeNil)

				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `test_r_squared{run_id="abc"} 0.87`)
				So(string(b), ShouldContainSubstring, `test_rows_loaded{run_id="abc",split="train"} 120`)
			})
		})
	})
}

func TestManagersAreIndependent(t *testing.T) {
	Convey("Given two managers with default options", t, func() {
		a := NewManager()
		b := NewManager()

		Convey("Then they do not share registries", func() {
			So(a.Registry() != b.Registry(), ShouldBeTrue)
			a.IncTrees()
			So(testutil.ToFloat64(a.treesFitted), ShouldEqual, 1.0)
			So(testutil.ToFloat64(b.treesFitted), ShouldEqual, 0.0)
		})

		Convey("Then writing to a missing directory fails", func() {
			So(a.WriteTextfile(filepath.Join(t.TempDir(), "nope", "m.prom")), ShouldNotBeNil)
		})
	})
}
