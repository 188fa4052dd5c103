package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /schedule/pending/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := Middleware(mux)

	before := testutil.ToFloat64(httpRequests.WithLabelValues("DELETE", "DELETE /schedule/pending/{id}", "404"))
	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodDelete, "/schedule/pending/"+id, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("DELETE", "DELETE /schedule/pending/{id}", "404"))

	if after-before != 2 {
		t.Errorf("expected 2 requests under one route label, got %v", after-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	JobRuns.WithLabelValues("queued").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `autopost_job_runs_total{outcome="queued"}`) {
		t.Error("expected job runs counter in exposition")
	}
}
