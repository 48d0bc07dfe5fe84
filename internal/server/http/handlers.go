package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/paperharbor/acquisition-service/internal/crawl"
	"github.com/paperharbor/acquisition-service/internal/domain"
)

// maxRequestBodySize bounds request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

// startCrawlRequest is the JSON request body for POST /api/v1/crawl.
type startCrawlRequest struct {
	Target     int      `json:"target" validate:"gte=0"`
	Sources    []string `json:"sources" validate:"dive,min=1"`
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories"`
	DateFrom   *string  `json:"date_from,omitempty"`
	DateTo     *string  `json:"date_to,omitempty"`
}

// feedRequest is the JSON request body for POST and DELETE /api/v1/feeds.
type feedRequest struct {
	URL  string `json:"url" validate:"required,url"`
	Name string `json:"name"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// startCrawl handles POST /api/v1/crawl.
func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req startCrawlRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dateFrom, ok := parseDate(w, req.DateFrom, "date_from")
	if !ok {
		return
	}
	dateTo, ok := parseDate(w, req.DateTo, "date_to")
	if !ok {
		return
	}
	if dateFrom != nil && dateTo != nil && dateTo.Before(*dateFrom) {
		writeError(w, http.StatusBadRequest, "date_to must not precede date_from")
		return
	}

	snap, err := s.manager.Start(crawl.Request{
		Target:     req.Target,
		Sources:    req.Sources,
		Keywords:   req.Keywords,
		Categories: req.Categories,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
	})
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// stopCrawl handles DELETE /api/v1/crawl.
func (s *Server) stopCrawl(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.manager.Stop()
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// crawlStatus handles GET /api/v1/crawl/status.
func (s *Server) crawlStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Status())
}

// listFeeds handles GET /api/v1/feeds.
func (s *Server) listFeeds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"feeds": s.manager.ListFeeds()})
}

// addFeed handles POST /api/v1/feeds.
func (s *Server) addFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.manager.AddFeed(req.URL, req.Name); err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": req.URL})
}

// removeFeed handles DELETE /api/v1/feeds.
func (s *Server) removeFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := s.manager.RemoveFeed(req.URL); err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": req.URL})
}

// writeManagerError maps domain errors onto HTTP status codes.
func (s *Server) writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCrawlActive):
		writeError(w, http.StatusConflict, "a crawl is already in progress")
	case errors.Is(err, domain.ErrNoCrawl):
		writeError(w, http.StatusConflict, "no crawl in progress")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseDate(w http.ResponseWriter, raw *string, field string) (*time.Time, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, *raw); err == nil {
			return &parsed, true
		}
	}
	writeError(w, http.StatusBadRequest, field+" must be RFC 3339 or YYYY-MM-DD")
	return nil, false
}
