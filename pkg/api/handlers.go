package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cachegrid/assetcache/internal/logger"
	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/key"
)

// VersionHandler drives the engine's put-transaction and read paths over
// HTTP, deliberately thin: it does no buffering or validation beyond what
// the engine and transaction packages already enforce.
type VersionHandler struct {
	engine engine.Engine
	trx    *transactionRegistry
}

// NewVersionHandler constructs a handler backed by eng.
func NewVersionHandler(eng engine.Engine) *VersionHandler {
	return &VersionHandler{engine: eng, trx: newTransactionRegistry()}
}

func pathVersion(r *http.Request) (key.VersionKey, error) {
	guid, err := key.ParseGUID(chi.URLParam(r, "guid"))
	if err != nil {
		return key.VersionKey{}, err
	}
	hash, err := key.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		return key.VersionKey{}, err
	}
	return key.VersionKey{GUID: guid, Hash: hash}, nil
}

// PutKind handles POST /v1/{guid}/{hash}/{kind}: it streams the request
// body into a pending write for the (guid, hash) transaction, creating the
// transaction on first use.
func (h *VersionHandler) PutKind(w http.ResponseWriter, r *http.Request) {
	v, err := pathVersion(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err))
		return
	}
	kind, err := key.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err))
		return
	}
	if r.ContentLength <= 0 {
		writeJSON(w, http.StatusLengthRequired, errorResponse(errors.New("Content-Length is required")))
		return
	}

	trx, err := h.trx.getOrCreate(r.Context(), h.engine, v)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err))
		return
	}

	ws, err := trx.GetWriteStream(kind, uint64(r.ContentLength))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err))
		return
	}

	if _, err := io.Copy(ws, r.Body); err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse(err))
		return
	}
	if err := ws.Close(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err))
		return
	}

	writeJSON(w, http.StatusAccepted, okResponse(map[string]string{"kind": kind.String()}))
}

// Commit handles POST /v1/{guid}/{hash}/commit: it finalizes and publishes
// the pending transaction for (guid, hash).
func (h *VersionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	v, err := pathVersion(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err))
		return
	}

	trx, ok := h.trx.take(v)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse(errors.New("no pending transaction for this version")))
		return
	}

	if err := h.engine.EndPutTransaction(r.Context(), trx); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse(err))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(map[string]string{"guid": v.GUID.String(), "hash": v.Hash.String()}))
}

// GetKind handles GET /v1/{guid}/{hash}/{kind}: it streams the currently
// published bytes for that file directly to the response body.
func (h *VersionHandler) GetKind(w http.ResponseWriter, r *http.Request) {
	v, err := pathVersion(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err))
		return
	}
	kind, err := key.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err))
		return
	}
	fk, err := key.New(kind, v.GUID, v.Hash)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err))
		return
	}

	info, err := h.engine.GetFileInfo(r.Context(), fk)
	if errors.Is(err, engine.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse(err))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err))
		return
	}

	rc, err := h.engine.GetFileStream(r.Context(), fk)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Length", strconv.FormatUint(info.Size, 10))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Error("api: failed to stream response body", "error", err)
	}
}

// Evict handles DELETE /v1/{guid}/{hash}.
func (h *VersionHandler) Evict(w http.ResponseWriter, r *http.Request) {
	v, err := pathVersion(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err))
		return
	}
	if err := h.engine.Evict(r.Context(), v.GUID, v.Hash); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrLocked) {
			status = http.StatusConflict
		}
		writeJSON(w, status, errorResponse(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /v1/stats.
func (h *VersionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(stats))
}

// Liveness handles GET /health.
func Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(map[string]string{"service": "assetcached"}))
}
