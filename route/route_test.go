package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

func tag(name string, calls *[]string) Step {
	return func(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
		*calls = append(*calls, name)
		return r.WithContext(context.WithValue(r.Context(), ctxKey(name), true)), true
	}
}

func stop(calls *[]string) Step {
	return func(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
		*calls = append(*calls, "stop")
		http.Redirect(w, r, "/login", http.StatusFound)
		return r, false
	}
}

func TestStepsRunInOrder(t *testing.T) {
	var calls []string
	table := New(tag("global", &calls))
	table.Get("/page", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "handler")
		assert.Equal(t, true, r.Context().Value(ctxKey("global")))
		assert.Equal(t, true, r.Context().Value(ctxKey("local")))
		w.WriteHeader(http.StatusNoContent)
	}), tag("local", &calls))

	rec := httptest.NewRecorder()
	table.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"global", "local", "handler"}, calls)
}

func TestStepShortCircuits(t *testing.T) {
	var calls []string
	table := New()
	table.Get("/secret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "handler")
	}), stop(&calls), tag("after", &calls))

	rec := httptest.NewRecorder()
	table.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/secret", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, []string{"stop"}, calls)
}

func TestNotFound(t *testing.T) {
	var calls []string
	table := New(tag("global", &calls))
	table.Get("/status", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	table.NotFound(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/status"},
		{http.MethodGet, "/status/"},
		{http.MethodGet, "/nope"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			table.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
	assert.Empty(t, calls, "before steps only run for matched routes")
}

func TestDuplicateRoutePanics(t *testing.T) {
	table := New()
	table.Get("/a", http.NotFoundHandler())
	assert.Panics(t, func() { table.Get("/a", http.NotFoundHandler()) })
}

func TestRoutesAndPattern(t *testing.T) {
	table := New()
	table.Get("/a", http.NotFoundHandler())
	table.Handle(http.MethodPost, "/b", http.NotFoundHandler())
	assert.Equal(t, []string{"GET /a", "POST /b"}, table.Routes())

	r := Capture(httptest.NewRequest(http.MethodGet, "/a", nil))
	assert.Equal(t, "unmatched", Pattern(r))
	table.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "GET /a", Pattern(r))

	miss := Capture(httptest.NewRequest(http.MethodGet, "/zzz", nil))
	table.ServeHTTP(httptest.NewRecorder(), miss)
	assert.Equal(t, "unmatched", Pattern(miss))

	require.Equal(t, "unmatched", Pattern(httptest.NewRequest(http.MethodGet, "/a", nil)))
}
