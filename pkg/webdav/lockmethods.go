package webdav

import (
	"errors"
	"net/http"
)

// handleLock grants an exclusive write lock on the path. Lock-null
// resources are not materialized: locking a nonexistent path succeeds
// and the client is expected to PUT afterwards.
func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request, tenant, path string) {
	depthValue, ok := parseDepth(r, "infinity")
	if !ok || depthValue == "1" {
		// RFC 4918 restricts LOCK to depth 0 or infinity.
		http.Error(w, "invalid Depth header", http.StatusBadRequest)
		return
	}
	depth := DepthZero
	if depthValue == "infinity" {
		depth = DepthInfinity
	}

	owner, hasBody, err := parseLockinfo(r.Body)
	if err != nil {
		http.Error(w, "malformed lockinfo body", http.StatusBadRequest)
		return
	}

	if !hasBody {
		h.handleLockRefresh(w, r, tenant, path)
		return
	}

	timeout := parseTimeout(r.Header.Get("Timeout"))

	lock, err := h.locks.Lock(tenant, path, depth, owner, timeout)
	if err != nil {
		if errors.Is(err, ErrLockConflict) {
			http.Error(w, "locked", http.StatusLocked)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeLockResponse(w, lock)
}

// handleLockRefresh extends an existing lock named by the If header.
func (h *Handler) handleLockRefresh(w http.ResponseWriter, r *http.Request, tenant, path string) {
	tokens := parseIfTokens(r.Header.Get("If"))
	if len(tokens) == 0 {
		http.Error(w, "missing lock token", http.StatusBadRequest)
		return
	}

	timeout := parseTimeout(r.Header.Get("Timeout"))

	lock, err := h.locks.Refresh(tenant, path, tokens[0], timeout)
	if err != nil {
		switch {
		case errors.Is(err, ErrLockNotFound):
			http.Error(w, "no lock on resource", http.StatusPreconditionFailed)
		case errors.Is(err, ErrLockForbidden):
			http.Error(w, "token does not match lock", http.StatusPreconditionFailed)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeLockResponse(w, lock)
}

// handleUnlock releases the lock named by the Lock-Token header.
func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request, tenant, path string) {
	token := parseLockToken(r.Header.Get("Lock-Token"))
	if token == "" {
		http.Error(w, "missing Lock-Token header", http.StatusBadRequest)
		return
	}

	if err := h.locks.Unlock(tenant, path, token); err != nil {
		switch {
		case errors.Is(err, ErrLockNotFound):
			http.Error(w, "no lock on resource", http.StatusConflict)
		case errors.Is(err, ErrLockForbidden):
			http.Error(w, "token does not match lock", http.StatusForbidden)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
