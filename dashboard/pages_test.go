package dashboard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/route"
	"github.com/stretchr/testify/assert"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":                     {Data: []byte("<h1>home</h1>")},
		"ORDERS_DELIVERY_DASHBOARD.html": {Data: []byte("<h1>orders</h1>")},
		"secret.env":                     {Data: []byte("TOKEN=1")},
	}
}

func TestServe(t *testing.T) {
	table := route.New()
	New(testFS(), []string{"ORDERS_DELIVERY_DASHBOARD.html", "SEASONALITY_DASHBOARD.html"}).Register(table)

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/", http.StatusOK, "<h1>home</h1>"},
		{"/ORDERS_DELIVERY_DASHBOARD.html", http.StatusOK, "<h1>orders</h1>"},
		{"/SEASONALITY_DASHBOARD.html", http.StatusNotFound, `{"error":"Not found"}`},
		{"/secret.env", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			table.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
				assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			}
		})
	}
}

func TestRegisterRunsSteps(t *testing.T) {
	table := route.New()
	deny := func(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
		w.Header().Set("Location", "/login")
		w.WriteHeader(http.StatusFound)
		return r, false
	}
	New(testFS(), []string{"ORDERS_DELIVERY_DASHBOARD.html"}).Register(table, deny)

	for _, path := range []string{"/", "/ORDERS_DELIVERY_DASHBOARD.html"} {
		rec := httptest.NewRecorder()
		table.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusFound, rec.Code, path)
	}
}

func TestRegisterSkipsDuplicates(t *testing.T) {
	table := route.New()
	assert.NotPanics(t, func() {
		New(testFS(), []string{"index.html", "A.html", "A.html"}).Register(table)
	})
	assert.Equal(t, []string{"GET /", "GET /A.html"}, table.Routes())
}
