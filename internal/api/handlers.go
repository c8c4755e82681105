package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/yevheniidehtiar/locust-love-django/internal/reports"
	"github.com/yevheniidehtiar/locust-love-django/internal/settings"
	"github.com/yevheniidehtiar/locust-love-django/internal/smells"
	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

// Handler wires HTTP routes to the store, the query demonstrations and the
// profile report backend.
type Handler struct {
	Store    *store.Store
	Smells   *smells.Smells
	Reports  reports.Backend
	Hub      *reports.Hub
	Settings *settings.Store
	Logger   *zap.Logger
}

// Routes registers every endpoint on r. Collection and detail paths answer
// with and without the trailing slash.
func (h *Handler) Routes(r *mux.Router) {
	h.handle(r, "/api/health", h.health, http.MethodGet)

	h.handle(r, "/api/authors/", h.listAuthors, http.MethodGet)
	h.handle(r, "/api/authors/", h.createAuthor, http.MethodPost)
	h.handle(r, "/api/authors/{id:[0-9]+}/", h.getAuthor, http.MethodGet)
	h.handle(r, "/api/authors/{id:[0-9]+}/", h.updateAuthor, http.MethodPut, http.MethodPatch)
	h.handle(r, "/api/authors/{id:[0-9]+}/", h.deleteAuthor, http.MethodDelete)
	h.handle(r, "/api/books/", h.listBooks, http.MethodGet)
	h.handle(r, "/api/books/", h.createBook, http.MethodPost)
	h.handle(r, "/api/books/{id:[0-9]+}/", h.getBook, http.MethodGet)
	h.handle(r, "/api/books/{id:[0-9]+}/", h.updateBook, http.MethodPut, http.MethodPatch)
	h.handle(r, "/api/books/{id:[0-9]+}/", h.deleteBook, http.MethodDelete)

	h.handle(r, "/api/examples/n-plus-one/", h.nPlusOne, http.MethodGet)
	h.handle(r, "/api/examples/optimized/", h.optimized, http.MethodGet)
	h.handle(r, "/api/examples/expensive/", h.expensive, http.MethodGet)
	h.handle(r, "/api/examples/annotation/", h.annotation, http.MethodGet)
	h.handle(r, "/api/examples/database-index/", h.databaseIndex, http.MethodGet)
	h.handle(r, "/api/examples/raw-sql/", h.rawSQL, http.MethodGet)
	h.handle(r, "/api/examples/query-caching/", h.queryCaching, http.MethodGet)
	h.handle(r, "/api/examples/deferred-loading/", h.deferredLoading, http.MethodGet)
	h.handle(r, "/api/examples/serializer-optimization/", h.serializerOptimization, http.MethodGet)
	h.handle(r, "/api/examples/complex-nested-queries/", h.complexNested, http.MethodGet)
	h.handle(r, "/api/examples/department-performance-analysis/", h.departmentAnalysis, http.MethodGet)

	h.handle(r, "/api/profiles", h.profileList, http.MethodGet)
	h.handle(r, "/api/profiles/stats", h.profileStats, http.MethodGet)
	h.handle(r, "/api/profiles/clear", h.profileClear, http.MethodPost)
	h.handle(r, "/api/profiles/stream", h.profileStream, http.MethodGet)
	h.handle(r, "/api/profiles/{uuid}", h.profileByFinding, http.MethodGet)

	h.handle(r, "/api/settings", h.getSettings, http.MethodGet)
	h.handle(r, "/api/settings", h.putSettings, http.MethodPut, http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

func (h *Handler) handle(r *mux.Router, path string, fn http.HandlerFunc, methods ...string) {
	trimmed := strings.TrimSuffix(path, "/")
	r.HandleFunc(trimmed, fn).Methods(methods...)
	if trimmed != path {
		r.HandleFunc(path, fn).Methods(methods...)
	}
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps store and report lookups that missed to 404 and everything
// else to 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, reports.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, reports.ErrUnsupported):
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": err.Error()})
	default:
		h.logger().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func parseIntDefault(val string, def int, max int) int {
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil || i <= 0 {
		return def
	}
	if i > max {
		return max
	}
	return i
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
