package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/guregu/null/v5"

	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/period"
	"github.com/hazz-dev/everwatch/internal/stats"
)

const skipTLSWarning = "TLS certificate verification is disabled for this endpoint"

type endpointSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Settings    endpoint.Settings `json:"settings"`
	Status      string            `json:"status"`
	Healthy     bool              `json:"healthy"`
	UptimePct   *float64          `json:"uptime_percent"`
	LatencyMs   *float64          `json:"latency_ms"`
	LastChecked *time.Time        `json:"last_checked"`
	Records     int               `json:"records"`
	Warning     string            `json:"warning,omitempty"`
}

func summarize(ep endpoint.Endpoint, now time.Time) endpointSummary {
	d := endpointSummary{
		ID:       ep.ID,
		Name:     ep.Name,
		URL:      ep.URL,
		Settings: ep.Settings,
		Status:   ep.LastKnownStatus,
		Healthy:  ep.Healthy(),
		Records:  len(ep.History),
	}
	if pct, ok, err := stats.Uptime(ep, now); err == nil && ok {
		d.UptimePct = &pct
	}
	if l, ok := stats.LatestLatency(ep); ok {
		ms := float64(l) / float64(time.Millisecond)
		d.LatencyMs = &ms
	}
	if n := len(ep.History); n > 0 {
		t := ep.History[n-1].Timestamp
		d.LastChecked = &t
	}
	if ep.Settings.SkipTLSVerification {
		d.Warning = skipTLSWarning
	}
	return d
}

// endpointRequest is the body of create and update calls. Absent fields keep
// their current (update) or default (create) values; expected_status 0
// removes the expectation.
type endpointRequest struct {
	Name                string `json:"name"`
	URL                 string `json:"url"`
	TimeSensitive       *bool  `json:"time_sensitive"`
	SkipTLSVerification *bool  `json:"skip_tls_verification"`
	ExpectedStatus      *int   `json:"expected_status"`
}

func (req endpointRequest) apply(s endpoint.Settings) (endpoint.Settings, error) {
	if req.TimeSensitive != nil {
		s.TimeSensitive = *req.TimeSensitive
	}
	if req.SkipTLSVerification != nil {
		s.SkipTLSVerification = *req.SkipTLSVerification
	}
	if req.ExpectedStatus != nil {
		switch code := *req.ExpectedStatus; {
		case code == 0:
			s.ExpectedStatus = null.Int{}
		case code < 100 || code > 599:
			return s, errors.New("expected_status must be between 100 and 599")
		default:
			s.ExpectedStatus = null.IntFrom(int64(code))
		}
	}
	return s, nil
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (endpointRequest, error) {
	var req endpointRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, err
	}
	return req, nil
}

// persist writes the snapshot after an edit. A failure is logged; the edit
// itself already took effect in memory.
func (s *Server) persist(r *http.Request) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Persist(r.Context()); err != nil {
		s.logger.Error("persisting after edit", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (endpoint.Endpoint, bool) {
	ep, err := s.reg.Get(chi.URLParam(r, "id"))
	if errors.Is(err, endpoint.ErrNotFound) {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return endpoint.Endpoint{}, false
	}
	if err != nil {
		s.logger.Error("Get", "id", chi.URLParam(r, "id"), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return endpoint.Endpoint{}, false
	}
	return ep, true
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	eps := s.reg.List()
	details := make([]endpointSummary, 0, len(eps))
	for _, ep := range eps {
		details = append(details, summarize(ep, now))
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleCreateEndpoint(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	settings, err := req.apply(endpoint.DefaultSettings())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := req.Name
	if name == "" {
		name = endpoint.NormalizeURL(req.URL)
	}
	ep, err := s.reg.Add(endpoint.New(name, req.URL, settings))
	if err != nil {
		s.logger.Error("Add", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if settings.SkipTLSVerification {
		s.logger.Warn("endpoint added without TLS verification", "endpoint", ep.Name, "url", ep.URL)
	}
	s.persist(r)
	writeJSON(w, http.StatusCreated, summarize(ep, time.Now()))
}

type endpointDetail struct {
	endpointSummary
	RecentRecords []endpoint.StatusRecord `json:"recent_records"`
}

func (s *Server) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, endpointDetail{
		endpointSummary: summarize(ep, time.Now()),
		RecentRecords:   page(ep.History, 10, 0),
	})
}

func (s *Server) handleUpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.lookup(w, r)
	if !ok {
		return
	}
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	settings, err := req.apply(cur.Settings)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := s.reg.Update(cur.ID, req.Name, req.URL, settings)
	if errors.Is(err, endpoint.ErrNotFound) {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}
	if err != nil {
		s.logger.Error("Update", "id", cur.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if settings.SkipTLSVerification && !cur.Settings.SkipTLSVerification {
		s.logger.Warn("TLS verification disabled", "endpoint", ep.Name, "url", ep.URL)
	}
	s.persist(r)
	writeJSON(w, http.StatusOK, summarize(ep, time.Now()))
}

func (s *Server) handleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.reg.Remove(id)
	if errors.Is(err, endpoint.ErrNotFound) {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}
	if err != nil {
		s.logger.Error("Remove", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.metrics.ForgetEndpoint(id)
	s.persist(r)
	w.WriteHeader(http.StatusNoContent)
}

type historyResponse struct {
	Records []endpoint.StatusRecord `json:"records"`
	Total   int                     `json:"total"`
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	id := chi.URLParam(r, "id")
	recs, err := s.reg.Records(id)
	if errors.Is(err, endpoint.ErrNotFound) {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}
	if err != nil {
		s.logger.Error("Records", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Records: page(recs, limit, offset),
		Total:   len(recs),
	})
}

// page returns records newest first, skipping offset and returning at most
// limit of them.
func page(recs []endpoint.StatusRecord, limit, offset int) []endpoint.StatusRecord {
	out := make([]endpoint.StatusRecord, 0, limit)
	for i := len(recs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, recs[i])
	}
	return out
}

type periodView struct {
	period.Period
	Duration string `json:"duration"`
}

func (s *Server) handleGetPeriods(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.lookup(w, r)
	if !ok {
		return
	}
	periods, err := period.ForDisplay(ep.History)
	if err != nil {
		s.logger.Error("aggregating periods", "id", ep.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now()
	views := make([]periodView, 0, len(periods))
	for _, p := range periods {
		views = append(views, periodView{Period: p, Duration: p.Duration(now).Round(time.Second).String()})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := stats.Summarize(s.reg.List(), time.Now())
	if err != nil {
		s.logger.Error("Summarize", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
