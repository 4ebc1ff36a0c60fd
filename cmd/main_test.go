package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/framerank/internal/config"
	"github.com/okian/framerank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestBuildService(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()
		log := logger.Get()

		convey.Convey("When remote analysis is disabled", func() {
			cfg.RemoteEnabled = false
			svc, err := buildService(ctx, cfg, log)

			convey.Convey("Then a local-only service is built", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.GetStats()["remoteEnabled"], convey.ShouldEqual, false)
			})
		})

		convey.Convey("When remote analysis is enabled without an API key", func() {
			cfg.GeminiAPIKey = ""
			svc, err := buildService(ctx, cfg, log)

			convey.Convey("Then the service still builds without the remote step", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.GetStats()["remoteEnabled"], convey.ShouldEqual, false)
			})
		})

		convey.Convey("When the counter lives in an unreachable redis", func() {
			cfg.RemoteEnabled = false
			cfg.CounterBackend = config.CounterRedis
			cfg.RedisAddr = "127.0.0.1:1"
			svc, err := buildService(ctx, cfg, log)

			convey.Convey("Then startup proceeds and stats report the outage", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.Start(ctx), convey.ShouldBeNil)
				defer svc.Stop()
				_, err := svc.ScanCount(ctx)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestHandler(t *testing.T) {
	convey.Convey("Given the full route table", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.RemoteEnabled = false
		log := logger.Get()
		svc, err := buildService(ctx, cfg, log)
		convey.So(err, convey.ShouldBeNil)
		h := newHandler(ctx, svc, newRateLimiter(cfg, log), log)

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			return w
		}

		convey.Convey("Then docs, stats and health are served", func() {
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/healthz").Code, convey.ShouldEqual, http.StatusOK)
			stats := get("/stats")
			convey.So(stats.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(stats.Body.String(), convey.ShouldContainSubstring, `"count":31847`)
		})

		convey.Convey("And analyze rejects a malformed body", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{}`)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRateLimiterConfig(t *testing.T) {
	convey.Convey("Given a configuration with rate limiting off", t, func() {
		cfg := config.New()
		cfg.RateLimitRPS = 0

		convey.Convey("Then no limiter is built", func() {
			convey.So(newRateLimiter(cfg, logger.Get()), convey.ShouldBeNil)
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("And the loop returns once its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
