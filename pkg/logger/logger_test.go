package logger_test

import (
	"context"
	"testing"

	"github.com/quillmetrics/quill/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When fetched before explicit initialization", func() {
			l := logger.Get()

			Convey("Then it is usable and stable across calls", func() {
				So(l, ShouldNotBeNil)
				So(logger.Get(), ShouldEqual, l)
				l.Info(context.Background(), "smoke", logger.String("k", "v"))
			})
		})

		Convey("When scoped with Named", func() {
			So(logger.Named("api"), ShouldNotBeNil)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		Convey("When a known name is applied", func() {
			for _, s := range []string{"debug", "info", "WARN", "warning", "error", ""} {
				So(logger.SetLevelString(s), ShouldBeNil)
			}
		})

		Convey("When an unknown name is applied", func() {
			So(logger.SetLevelString("loudest"), ShouldNotBeNil)
		})
	})
}
