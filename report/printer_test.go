package report

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
	"github.com/paroquia-cms/paroquia-cms/internal/view"
)

func sampleReport() *resource.Report {
	return &resource.Report{
		ID:          "r-1",
		Title:       "Intenções de Missa",
		GeneratedAt: time.Date(2024, 7, 10, 13, 5, 0, 0, time.UTC),
		Total:       1,
		Columns:     []string{"beneficiary", "intention_type"},
		Groups: []resource.ReportGroup{{
			Key:   "saude",
			Label: "Saúde",
			Items: []resource.Record{{"id": int64(1), "beneficiary": "José", "intention_type": "saude"}},
		}},
	}
}

// fakeGotenberg accepts a single index.html upload and answers with a tiny
// PDF. Anything else is a 400.
func fakeGotenberg(t *testing.T, received *string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /forms/chromium/convert/html", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("files")
		if err != nil || header.Filename != "index.html" {
			http.Error(w, "index.html is required", http.StatusBadRequest)
			return
		}
		if r.FormValue("paperWidth") != "8.27" || r.FormValue("paperHeight") != "11.7" {
			http.Error(w, "expected A4", http.StatusBadRequest)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		*received = string(body)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newEngine(t *testing.T) *view.Engine {
	t.Helper()
	engine, err := view.NewEngine(time.FixedZone("BRT", -3*60*60))
	require.NoError(t, err)
	return engine
}

func TestPrinterHTML(t *testing.T) {
	p := NewPrinter(newEngine(t), nil)
	html, err := p.HTML(context.Background(), sampleReport())
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, "Intenções de Missa")
	assert.Contains(t, out, "10/07/2024 10:05")
	assert.Contains(t, out, "José")
	assert.Contains(t, out, "Intention Type")
}

func TestPrinterPDF(t *testing.T) {
	var received string
	srv := fakeGotenberg(t, &received)
	p := NewPrinter(newEngine(t), NewClient(srv.URL+"/"))

	require.NoError(t, p.Ping(context.Background()))
	pdf, err := p.PDF(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
	assert.Contains(t, received, "<!DOCTYPE html>")
	assert.Contains(t, received, "José")
}

func TestPrinterWithoutRenderer(t *testing.T) {
	p := NewPrinter(newEngine(t), nil)
	_, err := p.PDF(context.Background(), sampleReport())
	assert.ErrorIs(t, err, shared.ErrUnavailable)
	assert.ErrorIs(t, p.Ping(context.Background()), shared.ErrUnavailable)
}

func TestClientReportsRenderFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "chromium crashed", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL)

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = client.RenderHTML(context.Background(), []byte("<p>x</p>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium crashed")
	assert.False(t, errors.Is(err, shared.ErrUnavailable))
}
