package api_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/framerank/internal/adapters/counter"
	"github.com/okian/framerank/internal/adapters/http/api"
	"github.com/okian/framerank/internal/adapters/remote"
	service "github.com/okian/framerank/internal/app"
	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	result   *model.Result
	err      error
	count    int64
	countErr error
	got      types.AnalyzeRequest
	calls    int
}

func (m *mockDependencies) Analyze(_ context.Context, req types.AnalyzeRequest) (*model.Result, error) {
	m.calls++
	m.got = req
	return m.result, m.err
}

func (m *mockDependencies) ScanCount(context.Context) (int64, error) {
	return m.count, m.countErr
}

var tinyImage = base64.StdEncoding.EncodeToString([]byte("frame"))

func sampleResult() *model.Result {
	return &model.Result{
		AnalysisID: "a-1",
		People: []model.Person{
			{Label: "Ana", Position: "left", CompositeScore: 70, Rank: 1, Source: model.SourceRemote},
			{Label: "Kim", Position: "right", CompositeScore: 55, Rank: 2, Source: model.SourceRemote},
		},
		WinnerIndex: 0,
		Explanation: "Ana leads.",
		Disclaimer:  model.Disclaimer,
	}
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func post(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) types.Response {
	var resp types.Response
	So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
	return resp
}

func TestAnalyzeEndpoint(t *testing.T) {
	Convey("Given a server backed by a mock analyzer", t, func() {
		deps := &mockDependencies{result: sampleResult()}
		mux := newMux(deps)

		Convey("When posting a valid request", func() {
			w := post(mux, `{"image":"`+tinyImage+`","mimeType":"image/png","width":640,"height":480}`)

			Convey("Then the success envelope is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				resp := decode(w)
				So(resp.Success, ShouldBeTrue)
				So(resp.Data.People, ShouldHaveLength, 2)
				So(resp.Data.People[0].Label, ShouldEqual, "Ana")
				So(resp.Code, ShouldBeEmpty)
			})

			Convey("And the request reaches the analyzer intact", func() {
				So(deps.calls, ShouldEqual, 1)
				So(deps.got.MimeType, ShouldEqual, "image/png")
				So(deps.got.Width, ShouldEqual, 640)
				So(deps.got.Detections, ShouldBeNil)
			})

			Convey("And a request id is minted", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldHaveLength, 26)
			})
		})

		Convey("When the client sends its own request id", func() {
			req := httptest.NewRequest(http.MethodPost, "/analyze",
				strings.NewReader(`{"image":"`+tinyImage+`","mimeType":"image/jpeg"}`))
			req.Header.Set(api.RequestIDHeader, "client-42")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is echoed back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "client-42")
			})
		})

		Convey("When posting an empty detections array", func() {
			w := post(mux, `{"image":"`+tinyImage+`","mimeType":"image/jpeg","detections":[]}`)

			Convey("Then the analyzer sees an empty, non-nil slice", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.got.Detections, ShouldNotBeNil)
				So(deps.got.Detections, ShouldBeEmpty)
			})
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest(http.MethodGet, "/analyze", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(deps.calls, ShouldEqual, 0)
			})
		})

		Convey("When the body is not JSON", func() {
			w := post(mux, `{not json`)

			Convey("Then 400 INVALID_IMAGE is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				resp := decode(w)
				So(resp.Success, ShouldBeFalse)
				So(resp.Code, ShouldEqual, model.CodeInvalidImage)
				So(deps.calls, ShouldEqual, 0)
			})
		})

		Convey("When the image is missing", func() {
			w := post(mux, `{"mimeType":"image/png"}`)

			Convey("Then the missing-field message is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w).Error, ShouldEqual, "Missing image or mimeType")
			})
		})

		Convey("When the MIME type is unsupported", func() {
			w := post(mux, `{"image":"`+tinyImage+`","mimeType":"image/gif"}`)

			Convey("Then the unsupported-type message is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w).Error, ShouldEqual, "Unsupported image type. Use JPEG, PNG or WebP.")
			})
		})

		Convey("When the body exceeds the size limit", func() {
			big := strings.Repeat("A", int(remote.MaxBase64Length)+2<<20)
			w := post(mux, `{"image":"`+big+`","mimeType":"image/png"}`)

			Convey("Then 413 is returned before analysis", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(decode(w).Code, ShouldEqual, model.CodeInvalidImage)
				So(deps.calls, ShouldEqual, 0)
			})
		})

		Convey("When the analyzer rejects the image", func() {
			deps.err = model.NewError(model.CodeNoPeople, "No people detected")
			w := post(mux, `{"image":"`+tinyImage+`","mimeType":"image/png"}`)

			Convey("Then 422 carries the public code and message", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				resp := decode(w)
				So(resp.Success, ShouldBeFalse)
				So(resp.Code, ShouldEqual, model.CodeNoPeople)
				So(resp.Error, ShouldEqual, "No people detected")
				So(resp.Data, ShouldBeNil)
			})
		})

		Convey("When the analyzer fails without a public message", func() {
			deps.err = errors.New("pq: connection refused at 10.0.0.3")
			w := post(mux, `{"image":"`+tinyImage+`","mimeType":"image/png"}`)

			Convey("Then internals are not leaked", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				resp := decode(w)
				So(resp.Code, ShouldEqual, model.CodeInternal)
				So(resp.Error, ShouldEqual, "Internal server error")
				So(w.Body.String(), ShouldNotContainSubstring, "10.0.0.3")
			})
		})
	})
}

func TestStatusFor(t *testing.T) {
	Convey("Given analysis errors", t, func() {
		cases := []struct {
			err  error
			want int
		}{
			{model.NewError(model.CodeInvalidImage, "bad"), http.StatusBadRequest},
			{model.WrapError(model.CodeInvalidImage, "big", remote.ErrTooLarge), http.StatusRequestEntityTooLarge},
			{model.NewError(model.CodeNoPeople, "x"), http.StatusUnprocessableEntity},
			{model.NewError(model.CodeTooManyPeople, "x"), http.StatusUnprocessableEntity},
			{model.NewError(model.CodePoorQuality, "x"), http.StatusUnprocessableEntity},
			{model.NewError(model.CodeRateLimit, "x"), http.StatusTooManyRequests},
			{model.NewError(model.CodeAIError, "x"), http.StatusBadGateway},
			{errors.New("boom"), http.StatusInternalServerError},
		}

		Convey("Then each maps to its HTTP status", func() {
			for _, c := range cases {
				So(api.StatusFor(c.err), ShouldEqual, c.want)
			}
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given a server", t, func() {
		deps := &mockDependencies{count: 31850}
		mux := newMux(deps)

		Convey("When requesting stats", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the count is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var st types.Stats
				So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
				So(st.Count, ShouldEqual, 31850)
			})
		})

		Convey("When the counter is unreachable", func() {
			deps.countErr = errors.New("redis down")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then 503 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(w.Body.String(), ShouldNotContainSubstring, "redis down")
			})
		})

		Convey("When posting to stats", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stats", nil))

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When probing health", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then a JSON liveness body is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When scraping health as text", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then Prometheus metrics are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "framerank_")
			})
		})
	})
}

func TestRateLimiter(t *testing.T) {
	Convey("Given a limiter allowing a burst of one", t, func() {
		rl := api.NewRateLimiter(api.WithRate(0.001, 1))
		deps := &mockDependencies{result: sampleResult()}
		mux := newMux(deps, api.WithRateLimiter(rl))
		body := `{"image":"` + tinyImage + `","mimeType":"image/png"}`

		send := func(addr string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
			req.RemoteAddr = addr
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		Convey("When one client sends twice", func() {
			first := send("10.1.1.1:5000")
			second := send("10.1.1.1:5001")

			Convey("Then the second request is rejected with RATE_LIMIT", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(second.Header().Get("Retry-After"), ShouldEqual, "1")
				So(decode(second).Code, ShouldEqual, model.CodeRateLimit)
				So(deps.calls, ShouldEqual, 1)
			})
		})

		Convey("When two clients send once each", func() {
			a := send("10.1.1.1:5000")
			b := send("10.2.2.2:5000")

			Convey("Then both are served", func() {
				So(a.Code, ShouldEqual, http.StatusOK)
				So(b.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When sweeping right away", func() {
			rl.Allow("10.3.3.3")

			Convey("Then recently seen clients are kept", func() {
				So(rl.Sweep(), ShouldEqual, 0)
			})
		})

		Convey("When the sweeper's context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				rl.Run(ctx)
				close(done)
			}()
			cancel()

			Convey("Then Run returns", func() {
				<-done
				So(true, ShouldBeTrue)
			})
		})
	})
}

func TestServerWithService(t *testing.T) {
	Convey("Given a server backed by a local-only analysis service", t, func() {
		svc := service.New(service.WithCounter(counter.NewMemory()))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		mux := newMux(svc)

		Convey("When posting a frame with two detections", func() {
			w := post(mux, `{"image":"`+tinyImage+`","mimeType":"image/jpeg","width":1000,"height":800,
				"detections":[
					{"bbox":{"x":80,"y":200,"w":200,"h":500},"confidence":0.9},
					{"bbox":{"x":600,"y":150,"w":260,"h":600},"confidence":0.95,"label":"Kim"}
				]}`)

			Convey("Then a ranked local result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				resp := decode(w)
				So(resp.Success, ShouldBeTrue)
				So(resp.Data.People, ShouldHaveLength, 2)
				So(resp.Data.People[0].Rank, ShouldEqual, 1)
				So(resp.Data.Disclaimer, ShouldEqual, model.Disclaimer)
				So(resp.Data.Fallbacks, ShouldNotBeEmpty)
				labels := []string{resp.Data.People[0].Label, resp.Data.People[1].Label}
				So(labels, ShouldContain, "Kim")
				So(labels, ShouldContain, "Person 1")
			})

			Convey("And the scan counter advances", func() {
				svc.Wait()
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
				var st types.Stats
				So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
				So(st.Count, ShouldEqual, counter.Seed+1)
			})
		})

		Convey("When posting an empty detections array", func() {
			w := post(mux, `{"image":"`+tinyImage+`","mimeType":"image/jpeg","width":1000,"height":800,"detections":[]}`)

			Convey("Then an empty result with no winner is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				resp := decode(w)
				So(resp.Data.People, ShouldBeEmpty)
				So(resp.Data.WinnerIndex, ShouldEqual, -1)
			})
		})

		Convey("When posting without any detections", func() {
			w := post(mux, `{"image":"`+tinyImage+`","mimeType":"image/jpeg"}`)

			Convey("Then the analysis fails with AI_ERROR", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				So(decode(w).Code, ShouldEqual, model.CodeAIError)
			})
		})
	})
}
