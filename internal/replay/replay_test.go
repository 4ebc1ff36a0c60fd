package replay_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/framerank/internal/adapters/counter"
	"github.com/okian/framerank/internal/adapters/detector"
	"github.com/okian/framerank/internal/adapters/http/api"
	service "github.com/okian/framerank/internal/app"
	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/types"
	"github.com/okian/framerank/internal/replay"
	"github.com/okian/framerank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func wellFormed() *model.Result {
	a := model.Vector{SpatialPresence: 80, PostureDominance: 70, FacialIntensity: 60, AttentionCapture: 75}
	b := model.Vector{SpatialPresence: 40, PostureDominance: 50, FacialIntensity: 40, AttentionCapture: 40}
	return &model.Result{
		People: []model.Person{
			{Label: "A", Signals: a, CompositeScore: 71.5, Rank: 1},
			{Label: "B", Signals: b, CompositeScore: 42.5, Rank: 2},
		},
		WinnerIndex: 1,
		Disclaimer:  model.Disclaimer,
	}
}

func TestSynthetic(t *testing.T) {
	Convey("Given synthetic fixtures from a fixed seed", t, func() {
		a, err := replay.Synthetic(20, 7)
		So(err, ShouldBeNil)
		b, err := replay.Synthetic(20, 7)
		So(err, ShouldBeNil)

		Convey("Then they are reproducible", func() {
			So(a, ShouldResemble, b)
		})

		Convey("And each holds two to six people on a decodable PNG", func() {
			for _, f := range a {
				So(len(f.Request.Detections), ShouldBeBetweenOrEqual, 2, 6)
				So(f.Request.MimeType, ShouldEqual, types.MimePNG)
				raw, err := base64.StdEncoding.DecodeString(f.Request.Image)
				So(err, ShouldBeNil)
				w, h, err := detector.Dimensions(raw)
				So(err, ShouldBeNil)
				So(w, ShouldEqual, 8.0)
				So(h, ShouldEqual, 8.0)
			}
		})

		Convey("And a different seed gives different geometry", func() {
			c, err := replay.Synthetic(20, 8)
			So(err, ShouldBeNil)
			So(c, ShouldNotResemble, a)
		})
	})
}

func TestFixtureFiles(t *testing.T) {
	Convey("Given a fixture file referencing an image beside it", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(filepath.Join(dir, "frame.jpg"), []byte("jpeg-bytes"), 0o600), ShouldBeNil)
		path := filepath.Join(dir, "fixtures.json")
		So(replay.SaveFixtures(path, []replay.Fixture{
			{ImageFile: "frame.jpg", Request: types.AnalyzeRequest{MimeType: types.MimeJPEG}},
			{Name: "inline", Request: types.AnalyzeRequest{Image: "aGk=", MimeType: types.MimePNG}},
		}), ShouldBeNil)

		Convey("When loading it", func() {
			fixtures, err := replay.LoadFixtures(path)

			Convey("Then images are inlined and names defaulted", func() {
				So(err, ShouldBeNil)
				So(fixtures, ShouldHaveLength, 2)
				So(fixtures[0].Name, ShouldEqual, "fixture-1")
				So(fixtures[0].Request.Image, ShouldEqual, base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")))
				So(fixtures[1].Name, ShouldEqual, "inline")
				So(fixtures[1].Request.Image, ShouldEqual, "aGk=")
			})
		})

		Convey("When the referenced image is missing", func() {
			So(os.Remove(filepath.Join(dir, "frame.jpg")), ShouldBeNil)
			_, err := replay.LoadFixtures(path)

			Convey("Then loading fails", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the file is not JSON", func() {
			bad := filepath.Join(dir, "bad.json")
			So(os.WriteFile(bad, []byte("not json"), 0o600), ShouldBeNil)
			_, err := replay.LoadFixtures(bad)

			Convey("Then loading fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given analysis results", t, func() {
		Convey("When the result is well formed", func() {
			Convey("Then nothing is reported", func() {
				So(replay.Verify(wellFormed()), ShouldBeEmpty)
			})
		})

		Convey("When the result is missing", func() {
			So(replay.Verify(nil), ShouldResemble, []string{"missing result"})
		})

		Convey("When ranks and order are broken", func() {
			res := wellFormed()
			res.People[0], res.People[1] = res.People[1], res.People[0]
			v := strings.Join(replay.Verify(res), "\n")

			Convey("Then both rules are reported", func() {
				So(v, ShouldContainSubstring, "person 0 has rank 2")
				So(v, ShouldContainSubstring, "person 1 outscores person 0")
			})
		})

		Convey("When the composite disagrees with the signals", func() {
			res := wellFormed()
			res.People[1].CompositeScore = 44
			So(strings.Join(replay.Verify(res), "\n"), ShouldContainSubstring, "person 1 composite 44.0, signals give 42.5")
		})

		Convey("When the tie flag is wrong", func() {
			res := wellFormed()
			res.IsTie = true
			So(replay.Verify(res), ShouldContain, "is_tie true, top scores give false")
		})

		Convey("When the winner index is out of range", func() {
			res := wellFormed()
			res.WinnerIndex = 2
			So(replay.Verify(res), ShouldContain, "winner index 2 outside [0,2)")
		})

		Convey("When an empty result names a winner", func() {
			res := &model.Result{People: []model.Person{}, WinnerIndex: 0, Disclaimer: model.Disclaimer}
			So(replay.Verify(res), ShouldContain, "empty result has winner index 0")
		})

		Convey("When the disclaimer was altered", func() {
			res := wellFormed()
			res.Disclaimer = "scores are fun"
			So(replay.Verify(res), ShouldContain, "disclaimer differs from the canonical text")
		})
	})
}

func TestScore(t *testing.T) {
	Convey("Given synthetic fixtures scored offline", t, func() {
		fixtures, err := replay.Synthetic(15, 99)
		So(err, ShouldBeNil)
		out := replay.Score(context.Background(), fixtures)

		Convey("Then every fixture ranks consistently", func() {
			So(out, ShouldHaveLength, 15)
			for i, o := range out {
				So(o.Response.Success, ShouldBeTrue)
				So(o.Violations, ShouldBeEmpty)
				So(o.Response.Data.People, ShouldHaveLength, len(fixtures[i].Request.Detections))
			}
		})
	})
}

func newServer() *httptest.Server {
	svc := service.New(service.WithCounter(counter.NewMemory()))
	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func TestRun(t *testing.T) {
	Convey("Given a running local-only server", t, func() {
		srv := newServer()
		defer srv.Close()
		fixtures, err := replay.Synthetic(6, 3)
		So(err, ShouldBeNil)
		cfg := replay.Config{BaseURL: srv.URL, Workers: 4, Repeat: 2, Timeout: 5 * time.Second}

		Convey("When replaying the fixtures", func() {
			sum, outcomes, err := replay.Run(context.Background(), cfg, fixtures)

			Convey("Then every response is ranked and consistent", func() {
				So(err, ShouldBeNil)
				So(outcomes, ShouldHaveLength, 12)
				So(sum.Sent, ShouldEqual, 12)
				So(sum.Ranked, ShouldEqual, 12)
				So(sum.Violations, ShouldEqual, 0)
				So(sum.CountAfter-sum.CountBefore, ShouldEqual, 12)
			})
		})

		Convey("When a fixture is rejected", func() {
			bad := replay.Fixture{Name: "gif", Request: types.AnalyzeRequest{Image: "aGk=", MimeType: "image/gif"}}
			sum, _, err := replay.Run(context.Background(), cfg, []replay.Fixture{bad})

			Convey("Then it is tallied by code, not as a violation", func() {
				So(err, ShouldBeNil)
				So(sum.Rejected[string(model.CodeInvalidImage)], ShouldEqual, 2)
				So(sum.Violations, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a server that returns inconsistent rankings", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"count":1}`)) })
		mux.HandleFunc("/analyze", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"data":{"people":[{"label":"A","composite_score":10,"rank":1},{"label":"B","composite_score":90,"rank":2}],"winner_index":0}}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()
		fixtures, _ := replay.Synthetic(1, 1)

		Convey("Then the run fails with ErrViolations", func() {
			sum, _, err := replay.Run(context.Background(), replay.Config{BaseURL: srv.URL, Timeout: time.Second}, fixtures)
			So(errors.Is(err, replay.ErrViolations), ShouldBeTrue)
			So(sum.Violations, ShouldEqual, 1)
		})
	})

	Convey("Given no server", t, func() {
		Convey("Then the health check fails the run", func() {
			_, _, err := replay.Run(context.Background(), replay.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
			So(err, ShouldNotBeNil)
		})
	})
}
