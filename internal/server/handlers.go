package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/refine/internal/keyword"
	"github.com/hyperjump/refine/internal/provider"
	"go.uber.org/zap"
)

// maxResults matches the page cap of the hosted API.
const maxResults = 10

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	num := maxResults
	if raw := r.URL.Query().Get("num"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxResults {
			s.respondError(w, http.StatusBadRequest, "num must be between 1 and 10")
			return
		}
		num = n
	}
	s.logger.Debug("search request", zap.String("q", q), zap.Int("num", num))

	hits, err := s.index.Search(r.Context(), q, num)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	base := baseURL(r)
	resp := provider.Response{Items: make([]provider.Item, 0, len(hits))}
	for _, h := range hits {
		resp.Items = append(resp.Items, provider.Item{
			Title:   h.Title,
			Link:    documentLink(base, h.ID, h.Path),
			Snippet: h.Snippet,
		})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleGetDocument serves the original file. The route segment is the document ID followed by
// the file's extension, so clients can classify the link by suffix.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	id := strings.TrimSuffix(file, filepath.Ext(file))
	doc, err := s.index.Lookup(r.Context(), id)
	if errors.Is(err, keyword.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.logger.Error("lookup failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	f, err := os.Open(doc.Path)
	if err != nil {
		s.logger.Warn("indexed file unavailable", zap.String("path", doc.Path), zap.Error(err))
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType(doc.Ext))
	http.ServeContent(w, r, filepath.Base(doc.Path), info.ModTime(), f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.index.DocCount()
	if err != nil {
		s.logger.Error("health: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "documents": count})
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func documentLink(base, id, path string) string {
	return base + "/documents/" + url.PathEscape(id) + strings.ToLower(filepath.Ext(path))
}

func contentType(ext string) string {
	switch ext {
	case ".md", ".txt":
		return "text/plain; charset=utf-8"
	case ".htm", ".html":
		return "text/html; charset=utf-8"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error body shaped like the hosted API's.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, provider.Response{Error: &provider.APIError{Code: status, Message: message}})
}
