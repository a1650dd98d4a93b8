package metrics

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var indexPage = template.Must(template.New("index").Parse(`<html><head><title>BSBI Search Metrics</title></head><body>
<h1>BSBI Search Metrics</h1>
<p>Scrape endpoint: <a href="/metrics">/metrics</a></p>
<table>
<tr><th>series</th><th>type</th><th>help</th></tr>
{{range .}}<tr><td><a href="/metrics#{{.Name}}">{{.Name}}</a></td><td>{{.Type}}</td><td>{{.Help}}</td></tr>
{{end}}</table>
</body></html>
`))

type seriesRow struct {
	Name string
	Type string
	Help string
}

// NewServeMux serves the scrape endpoint for g and an index page listing
// every series g currently exposes. Labelled series only appear once they
// have been observed.
func NewServeMux(g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		families, err := g.Gather()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rows := make([]seriesRow, 0, len(families))
		for _, mf := range families {
			rows = append(rows, seriesRow{
				Name: mf.GetName(),
				Type: mf.GetType().String(),
				Help: mf.GetHelp(),
			})
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexPage.Execute(w, rows); err != nil {
			slog.Warn("rendering metrics index", "error", err)
		}
	})
	return mux
}

// StartServer exposes the default registry on its own port. The indexer
// uses it since it has no HTTP surface of its own.
func StartServer(port int) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewServeMux(prometheus.DefaultGatherer),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr, "index", "/", "scrape", "/metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}
