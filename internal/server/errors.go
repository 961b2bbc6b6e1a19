package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pseudocoder/diffcore/internal/diff"
	apperrors "github.com/pseudocoder/diffcore/internal/errors"
	"github.com/pseudocoder/diffcore/internal/storage"
)

var errStoreDisabled = apperrors.StoreDisabled()

// errorCode maps any error onto a stable code. Storage sentinels are
// translated so clients never see error.unknown for a missing record.
func errorCode(err error) string {
	if errors.Is(err, storage.ErrDiffNotFound) {
		return apperrors.CodeStorageNotFound
	}
	return apperrors.GetCode(err)
}

// httpStatus picks the response status for an error code.
func httpStatus(code string) int {
	switch code {
	case apperrors.CodeDiffParseFailed,
		apperrors.CodeDiffAmbiguousPaths,
		apperrors.CodeDiffEmpty,
		apperrors.CodeDiffEncodingFailed,
		apperrors.CodeDiffInvalidDictionary,
		apperrors.CodeServerInvalidMessage:
		return http.StatusBadRequest
	case apperrors.CodeDiffTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.CodeServerRateLimited:
		return http.StatusTooManyRequests
	case apperrors.CodeStorageNotFound:
		return http.StatusNotFound
	case apperrors.CodeServerStoreDisabled:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// wrapStorageError gives store failures a coded error. A missing record
// becomes storage.not_found, which writeError answers with 404.
func wrapStorageError(err error) error {
	if errors.Is(err, storage.ErrDiffNotFound) {
		return apperrors.NotFound("diff")
	}
	return apperrors.Wrap(apperrors.CodeStorageQueryFailed, "storage error", err)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

// errorPayload converts err for clients. Internal errors are logged and
// their details withheld.
func errorPayload(err error) ErrorPayload {
	p := ErrorPayload{Code: errorCode(err), Message: apperrors.GetMessage(err)}
	if httpStatus(p.Code) == http.StatusInternalServerError {
		log.Printf("server: internal error: %v", err)
		p.Message = "internal error"
	}

	var perr *diff.ParseError
	if errors.As(err, &perr) {
		p.Line = perr.Line
		p.Context = perr.Context
	}
	return p
}

// writeError sends the error payload with a status derived from its code.
func writeError(w http.ResponseWriter, err error) {
	p := errorPayload(err)
	writeJSON(w, httpStatus(p.Code), p)
}
