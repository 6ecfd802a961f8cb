// Package webdav implements the Marble WebDAV handler (RFC 4918, DAV
// class 1 and 2) together with its in-memory lock manager.
//
// The handler is a thin protocol layer: it authenticates the request,
// normalizes the path, consults the lock manager for mutating methods,
// dispatches to a per-method handler, and translates facade errors to
// HTTP status codes exactly once. All filesystem semantics live in the
// storage facade.
package webdav

import (
	"errors"
	"net/http"

	"github.com/marmos91/marble/internal/logger"
	"github.com/marmos91/marble/pkg/auth"
	"github.com/marmos91/marble/pkg/storage"
)

const authRealm = "marble"

// DefaultMaxBodyBytes caps PUT bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 30 // 1 GiB

// HandlerConfig contains the dependencies and policy knobs of the
// handler.
type HandlerConfig struct {
	// Storage is the tenant storage facade
	Storage *storage.TenantStorage

	// Auth is the authentication service
	Auth *auth.Service

	// Locks is the in-memory lock manager
	Locks *LockManager

	// AllowDepthInfinity permits Depth: infinity PROPFIND. Off by
	// default: the cost is unbounded for large vaults.
	AllowDepthInfinity bool

	// MaxBodyBytes caps request bodies; 0 selects DefaultMaxBodyBytes
	MaxBodyBytes int64
}

// Handler serves WebDAV requests for all tenants on a single endpoint.
//
// Thread Safety:
// Safe for concurrent use; all state lives in the facade and the lock
// manager.
type Handler struct {
	storage            *storage.TenantStorage
	auth               *auth.Service
	locks              *LockManager
	allowDepthInfinity bool
	maxBodyBytes       int64
}

// NewHandler creates the WebDAV handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Storage == nil {
		return nil, errors.New("webdav: storage facade is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("webdav: auth service is required")
	}
	if cfg.Locks == nil {
		return nil, errors.New("webdav: lock manager is required")
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return &Handler{
		storage:            cfg.Storage,
		auth:               cfg.Auth,
		locks:              cfg.Locks,
		allowDepthInfinity: cfg.AllowDepthInfinity,
		maxBodyBytes:       maxBody,
	}, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		requireAuth(w)
		return
	}

	tenant, err := h.auth.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			requireAuth(w)
			return
		}
		logger.Error("authentication backend failure for %s: %v", username, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	path, err := storage.NormalizePath(r.URL.Path)
	if err != nil {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	logger.Debug("%s %s tenant=%s", r.Method, path, tenant)

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, tenant, path, true)
	case http.MethodHead:
		h.handleGet(w, r, tenant, path, false)
	case http.MethodOptions:
		h.handleOptions(w)
	case http.MethodPut:
		h.handlePut(w, r, tenant, path)
	case "MKCOL":
		h.handleMkcol(w, r, tenant, path)
	case http.MethodDelete:
		h.handleDelete(w, r, tenant, path)
	case "PROPFIND":
		h.handlePropfind(w, r, tenant, path)
	case "PROPPATCH":
		h.handleProppatch(w, r, tenant, path)
	case "COPY":
		h.handleCopyMove(w, r, tenant, path, false)
	case "MOVE":
		h.handleCopyMove(w, r, tenant, path, true)
	case "LOCK":
		h.handleLock(w, r, tenant, path)
	case "UNLOCK":
		h.handleUnlock(w, r, tenant, path)
	default:
		w.Header().Set("Allow", allowedMethods)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

const allowedMethods = "OPTIONS, GET, HEAD, PUT, DELETE, MKCOL, PROPFIND, PROPPATCH, COPY, MOVE, LOCK, UNLOCK"

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
	http.Error(w, "authentication required", http.StatusUnauthorized)
}

// checkLock consults the lock manager with the request's If header
// tokens. Returns false after writing 423 when a foreign lock covers the
// path.
func (h *Handler) checkLock(w http.ResponseWriter, r *http.Request, tenant, path string) bool {
	err := h.locks.Check(tenant, path, parseIfTokens(r.Header.Get("If")))
	if err != nil {
		http.Error(w, "locked", http.StatusLocked)
		return false
	}
	return true
}

// writeStorageError translates a facade error to its HTTP status. Backend
// failures are logged with context and surfaced as a generic 500.
func (h *Handler) writeStorageError(w http.ResponseWriter, err error, tenant, path, op string) {
	var storageErr *storage.StorageError
	if !errors.As(err, &storageErr) {
		logger.Error("%s failed tenant=%s path=%s: %v", op, tenant, path, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	switch storageErr.Code {
	case storage.ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case storage.ErrConflict, storage.ErrNotDirectory, storage.ErrAlreadyExists:
		http.Error(w, storageErr.Message, http.StatusConflict)
	case storage.ErrIsDirectory:
		http.Error(w, storageErr.Message, http.StatusForbidden)
	case storage.ErrInvalidPath:
		http.Error(w, "invalid path", http.StatusBadRequest)
	case storage.ErrUnknownTenant:
		requireAuth(w)
	default:
		logger.Error("%s failed tenant=%s path=%s: %v", op, tenant, path, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
