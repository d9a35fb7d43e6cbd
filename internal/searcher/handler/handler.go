// Package handler exposes hit lookup and the search-provider contract over
// HTTP/JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/searcher/provider"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/middleware"
)

const maxBodyBytes = 1 << 20

type Searcher interface {
	Search(ctx context.Context, req index.SearchRequest) (index.SearchHits, error)
}

type ResultProvider interface {
	InitialResults(ctx context.Context, terms []string) ([]string, error)
	SubsearchResults(ctx context.Context, previous, terms []string) ([]string, error)
	ResultMetas(ctx context.Context, ids []string) ([]provider.ResultMeta, error)
}

type SearchResponse struct {
	Query string           `json:"query"`
	Total int              `json:"total"`
	Hits  index.SearchHits `json:"hits"`
}

// TermsRequest is the body of the initial and subsearch routes.
type TermsRequest struct {
	Terms    []string `json:"terms"`
	Previous []string `json:"previous,omitempty"`
}

type ResultsResponse struct {
	Results []string `json:"results"`
}

type MetasRequest struct {
	IDs []string `json:"ids"`
}

type MetasResponse struct {
	Metas []provider.ResultMeta `json:"metas"`
}

// Handler serves the search and provider routes.
type Handler struct {
	searcher   Searcher
	provider   ResultProvider
	namespaces []string
	logger     *slog.Logger
}

// New returns a Handler. namespaces apply when a search names none.
func New(s Searcher, p ResultProvider, namespaces []string) *Handler {
	return &Handler{
		searcher:   s,
		provider:   p,
		namespaces: namespaces,
		logger:     slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/provider/initial", h.Initial)
	mux.HandleFunc("POST /api/v1/provider/subsearch", h.Subsearch)
	mux.HandleFunc("POST /api/v1/provider/metas", h.Metas)
}

// Search serves GET /api/v1/search?q=term&ns=a&ns=b. Comma-separated ns
// values are accepted too.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		h.writeFailure(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	namespaces := parseNamespaces(r.URL.Query()["ns"])
	if len(namespaces) == 0 {
		namespaces = h.namespaces
	}

	hits, err := h.searcher.Search(ctx, index.SearchRequest{Namespaces: namespaces, Query: q})
	if err != nil {
		log.Error("search failed", "query", q, "error", err)
		h.writeFailure(w, err)
		return
	}
	log.Info("search completed",
		"query", q,
		"namespaces", namespaces,
		"hits", len(hits),
		"request_id", middleware.GetRequestID(ctx),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, SearchResponse{Query: q, Total: len(hits), Hits: hits})
}

// Initial serves POST /api/v1/provider/initial.
func (h *Handler) Initial(w http.ResponseWriter, r *http.Request) {
	var req TermsRequest
	if !h.decode(w, r, &req) {
		return
	}
	ids, err := h.provider.InitialResults(r.Context(), req.Terms)
	if err != nil {
		logger.FromContext(r.Context()).Error("initial results failed", "terms", req.Terms, "error", err)
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResultsResponse{Results: ids})
}

// Subsearch serves POST /api/v1/provider/subsearch.
func (h *Handler) Subsearch(w http.ResponseWriter, r *http.Request) {
	var req TermsRequest
	if !h.decode(w, r, &req) {
		return
	}
	ids, err := h.provider.SubsearchResults(r.Context(), req.Previous, req.Terms)
	if err != nil {
		logger.FromContext(r.Context()).Error("subsearch failed", "terms", req.Terms, "error", err)
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResultsResponse{Results: ids})
}

// Metas serves POST /api/v1/provider/metas.
func (h *Handler) Metas(w http.ResponseWriter, r *http.Request) {
	var req MetasRequest
	if !h.decode(w, r, &req) {
		return
	}
	metas, err := h.provider.ResultMetas(r.Context(), req.IDs)
	if err != nil {
		logger.FromContext(r.Context()).Error("result metas failed", "ids", len(req.IDs), "error", err)
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MetasResponse{Metas: metas})
}

func parseNamespaces(values []string) []string {
	var out []string
	for _, v := range values {
		for _, ns := range strings.Split(v, ",") {
			if ns = strings.TrimSpace(ns); ns != "" {
				out = append(out, ns)
			}
		}
	}
	return out
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeFailure(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
				"request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		h.writeFailure(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps err to a status. AppErrors carry their own message;
// other client errors echo err and server errors stay opaque.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		h.writeError(w, status, appErr.Message)
	case status < http.StatusInternalServerError:
		h.writeError(w, status, err.Error())
	default:
		h.writeError(w, status, "search failed")
	}
}
