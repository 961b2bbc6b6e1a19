package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pseudocoder/diffcore/internal/diff"
	apperrors "github.com/pseudocoder/diffcore/internal/errors"
	"github.com/pseudocoder/diffcore/internal/storage"
)

// defaultMetricsWindow is used by /api/metrics when no window is given.
const defaultMetricsWindow = time.Hour

// handleParse parses the raw diff in the request body.
// Query parameters: store=1 persists the result, source labels it.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(remoteHost(r)) {
		writeError(w, apperrors.RateLimited())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperrors.DiffTooLarge(int(tooLarge.Limit)+1, int(tooLarge.Limit)))
			return
		}
		writeError(w, apperrors.InvalidMessage("failed to read request body"))
		return
	}

	store, err := queryBool(r, "store")
	if err != nil {
		writeError(w, err)
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "http"
	}

	payload, err := s.parseAndStore(source, string(body), store)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if payload.ID != "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, payload)
}

// queryBool reads a boolean query parameter. Absent means false; "1",
// "true" and the other strconv.ParseBool spellings are accepted.
func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperrors.InvalidMessage("invalid " + key + " parameter: " + v)
	}
	return b, nil
}

// DiffListResponse is the body of GET /api/diffs.
type DiffListResponse struct {
	Diffs []*storage.DiffRecord `json:"diffs"`
	Total int                   `json:"total"`
}

// DiffResponse is the body of GET /api/diffs/{id}.
type DiffResponse struct {
	Record  *storage.DiffRecord `json:"record"`
	Changes []diff.Dictionary   `json:"changes"`
}

// handleListDiffs returns stored diffs, newest first. Query parameter limit
// caps the list; the store applies its own default when it is absent.
func (s *Server) handleListDiffs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errStoreDisabled)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperrors.InvalidMessage("invalid limit parameter: "+v))
			return
		}
		limit = n
	}

	records, err := s.store.ListDiffs(limit)
	if err != nil {
		writeError(w, wrapStorageError(err))
		return
	}
	total, err := s.store.CountDiffs()
	if err != nil {
		writeError(w, wrapStorageError(err))
		return
	}
	writeJSON(w, http.StatusOK, DiffListResponse{Diffs: records, Total: total})
}

// handleGetDiff returns one stored diff with its change dictionaries.
func (s *Server) handleGetDiff(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errStoreDisabled)
		return
	}

	rec, cs, err := s.store.GetDiff(r.PathValue("id"))
	if err != nil {
		writeError(w, wrapStorageError(err))
		return
	}
	writeJSON(w, http.StatusOK, DiffResponse{Record: rec, Changes: cs.ToDictionaries()})
}

// handleDeleteDiff removes a stored diff and answers 204.
func (s *Server) handleDeleteDiff(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errStoreDisabled)
		return
	}

	if err := s.store.DeleteDiff(r.PathValue("id")); err != nil {
		writeError(w, wrapStorageError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMetrics reports parse outcomes. Query parameter window is a Go
// duration such as "15m".
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, errStoreDisabled)
		return
	}

	window := defaultMetricsWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, apperrors.InvalidMessage("invalid window parameter: "+v))
			return
		}
		window = d
	}

	m, err := s.metrics.ParseMetrics(window)
	if err != nil {
		writeError(w, wrapStorageError(err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}
