package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMiddleware_Tracing(t *testing.T) {
	tests := []struct {
		name        string
		traceparent string
		wantTraceID string
	}{
		{name: "new trace"},
		{
			name:        "continued trace",
			traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			wantTraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMetrics(t)
			exp := installTracer(t)

			var inner string
			h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				inner = CorrelationID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPut, "/api/transcript", nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if len(inner) != 32 {
				t.Fatalf("handler correlation id = %q, want 32 hex chars", inner)
			}
			if tt.wantTraceID != "" && inner != tt.wantTraceID {
				t.Errorf("handler correlation id = %q, want %q", inner, tt.wantTraceID)
			}
			if got := rec.Header().Get(CorrelationHeader); got != inner {
				t.Errorf("%s = %q, want %q", CorrelationHeader, got, inner)
			}

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			if spans[0].Name != "PUT /api/transcript" {
				t.Errorf("span name = %q", spans[0].Name)
			}
		})
	}
}

func TestMiddleware_SessionAttribute(t *testing.T) {
	m, _ := newTestMetrics(t)
	exp := installTracer(t)

	h := Middleware(m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req = req.WithContext(WithSessionID(req.Context(), "interview-1"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == SessionIDKey && a.Value.AsString() == "interview-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("span attributes %v lack %s", spans[0].Attributes, SessionIDKey)
	}
}

func TestMiddleware_StatusHandling(t *testing.T) {
	tests := []struct {
		status    int
		wantError bool
	}{
		{http.StatusOK, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			m, _ := newTestMetrics(t)
			exp := installTracer(t)

			h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))

			if rec.Code != tt.status {
				t.Errorf("response status = %d, want %d", rec.Code, tt.status)
			}
			span := exp.GetSpans()[0]
			var code int64
			for _, a := range span.Attributes {
				if string(a.Key) == "http.response.status_code" {
					code = a.Value.AsInt64()
				}
			}
			if code != int64(tt.status) {
				t.Errorf("span status code attribute = %d, want %d", code, tt.status)
			}
			if gotErr := span.Status.Code == codes.Error; gotErr != tt.wantError {
				t.Errorf("span error status = %v, want %v", gotErr, tt.wantError)
			}
		})
	}
}

func TestMiddleware_RouteLabels(t *testing.T) {
	m, reader := newTestMetrics(t)
	installTracer(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/audio/{file}", func(http.ResponseWriter, *http.Request) {})
	h := Middleware(m)(mux)

	for _, p := range []string{"/api/audio/question_1.mp3", "/api/audio/question_2.mp3", "/unrouted"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	met := findMetric(collect(t, reader), "mockinterview.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not recorded")
	}
	hist := met.Data.(metricdata.Histogram[float64])

	counts := make(map[string]uint64)
	for _, dp := range hist.DataPoints {
		path, _ := dp.Attributes.Value("path")
		status, _ := dp.Attributes.Value("status")
		counts[path.AsString()+" "+status.AsString()] += dp.Count
	}
	if got := counts["GET /api/audio/{file} 200"]; got != 2 {
		t.Errorf("audio route samples = %d, want 2 (counts %v)", got, counts)
	}
	if got := counts["/unrouted 404"]; got != 1 {
		t.Errorf("unrouted samples = %d, want 1 (counts %v)", got, counts)
	}
}

func TestResponseRecorder_Unwrap(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: inner, status: http.StatusOK}
	if rec.Unwrap() != inner {
		t.Error("Unwrap did not return the wrapped writer")
	}
	rec.Flush()
	if !inner.Flushed {
		t.Error("Flush was not forwarded")
	}
}
