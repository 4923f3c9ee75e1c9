// Package web serves the logbook dashboard and the operational JSON API.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"logbook/internal/telemetry"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"num":  formatNumber,
	"text": formatText,
	"hour": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
}).ParseFS(templatesFS, "templates/index.html"))

// SummaryReader lists hourly summaries newest first.
type SummaryReader interface {
	Summaries(ctx context.Context, limit int) ([]telemetry.Summary, error)
}

type Deps struct {
	Status *Status
	// History is nil when the sink keeps no summaries.
	History SummaryReader
	Logs    *LogBuffer
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func Handler(d Deps) http.Handler {
	if d.Status == nil {
		d.Status = NewStatus(nil, nil)
	}
	r := mux.NewRouter()

	r.HandleFunc("/", d.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/summaries", d.handleSummaries).Methods(http.MethodGet)
	r.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Status.Snapshot(time.Now().UTC()))
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/about", handleAbout).Methods(http.MethodGet)
	if d.Logs != nil {
		r.Handle("/api/logs", d.Logs.Handler()).Methods(http.MethodGet)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}
	return r
}

type indexPage struct {
	Available bool
	Error     string
	Rows      []telemetry.Summary
}

func (d Deps) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := indexPage{Available: d.History != nil}
	if d.History != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		rows, err := d.History.Summaries(ctx, 0)
		if err != nil {
			page.Error = err.Error()
		}
		page.Rows = rows
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if page.Error != "" {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = indexTemplate.Execute(w, page)
}

func (d Deps) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if d.History == nil {
		http.Error(w, "summaries unavailable for this sink", http.StatusNotFound)
		return
	}
	limit := 0
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rows, err := d.History.Summaries(ctx, limit)
	if err != nil {
		http.Error(w, "query failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []telemetry.Summary{}
	}
	writeJSON(w, http.StatusOK, struct {
		Summaries []telemetry.Summary `json:"summaries"`
	}{rows})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func formatNumber(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func formatText(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
