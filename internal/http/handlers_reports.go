package http

import (
	"net/http"
	"strconv"

	"hamyon/internal/core"
	"hamyon/internal/services"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Dashboard(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newDashboardView(d)).Write(w)
}

// handleStatistics serves ?period= (default all) and optional ?type=.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := core.ParsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.reports.Statistics(r.Context(), userID(r), period, core.EntryType(q.Get("type")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newStatisticsView(st)).Write(w)
}

// handleChart renders ?kind=categories|daily for ?currency= as PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := core.ParsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	kind := services.ChartKind(q.Get("kind"))
	if kind == "" {
		kind = services.ChartCategories
	}
	currency := core.Currency(q.Get("currency"))
	if currency == "" {
		currency = core.CurrencyUZS
	}

	png, err := s.reports.ChartPNG(r.Context(), userID(r), services.ChartRequest{
		Kind:     kind,
		Period:   period,
		Type:     core.EntryType(q.Get("type")),
		Currency: currency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
