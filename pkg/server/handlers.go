package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sternrassler/yfi-proxy/pkg/quote"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Quote(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	prices, err := s.svc.Quotes(r.Context(), chi.URLParam(r, "tickers"))
	if err != nil {
		if prices == nil {
			s.writeError(w, r, err)
			return
		}
		// Serve the null mapping but keep it out of the cache.
		hlog.FromRequest(r).Warn().Err(err).Msg("Batch quote failed upstream")
		w.Header().Set("Cache-Control", "no-store")
	}
	writeJSON(w, http.StatusOK, prices)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Info(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// writeError reports domain errors in-band with status 200 and anything
// else as a 502, which the cache does not store.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var qErr *quote.Error
	if errors.As(err, &qErr) {
		writeJSON(w, http.StatusOK, map[string]string{"error": qErr.Msg})
		return
	}

	hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("Upstream request failed")
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Yahoo Finance request failed: " + err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
