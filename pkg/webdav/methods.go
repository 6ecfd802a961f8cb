package webdav

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/marmos91/marble/pkg/storage"
)

// handleGet serves GET and HEAD. Directories are refused with 403; the
// entry's digest doubles as a strong ETag.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, tenant, path string, includeBody bool) {
	meta, err := h.storage.Metadata(r.Context(), tenant, path)
	if err != nil {
		h.writeStorageError(w, err, tenant, path, "GET")
		return
	}

	if meta.IsDirectory {
		http.Error(w, "is a directory", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("Last-Modified", meta.LastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("ETag", etag(meta))

	if !includeBody {
		w.WriteHeader(http.StatusOK)
		return
	}

	data, err := h.storage.Read(r.Context(), tenant, path)
	if err != nil {
		h.writeStorageError(w, err, tenant, path, "GET")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleOptions advertises DAV class 1 and 2 capability.
func (h *Handler) handleOptions(w http.ResponseWriter) {
	w.Header().Set("DAV", "1, 2")
	w.Header().Set("Allow", allowedMethods)
	w.Header().Set("MS-Author-Via", "DAV")
	w.WriteHeader(http.StatusOK)
}

// handlePut writes the request body at path, creating missing ancestor
// folders. 201 on creation, 204 on overwrite, 405 when a folder occupies
// the path, 413 when the body exceeds the configured cap.
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request, tenant, path string) {
	if !h.checkLock(w, r, tenant, path) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	created, err := h.storage.Write(r.Context(), tenant, path, body, r.Header.Get("Content-Type"))
	if err != nil {
		var storageErr *storage.StorageError
		if errors.As(err, &storageErr) && storageErr.Code == storage.ErrIsDirectory {
			http.Error(w, "is a directory", http.StatusMethodNotAllowed)
			return
		}
		h.writeStorageError(w, err, tenant, path, "PUT")
		return
	}

	if created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleMkcol creates a collection. Unlike PUT, missing parents are a 409
// per RFC 4918; an existing entry at the path is a 405.
func (h *Handler) handleMkcol(w http.ResponseWriter, r *http.Request, tenant, path string) {
	if !h.checkLock(w, r, tenant, path) {
		return
	}

	// MKCOL bodies are undefined by the RFC; refuse rather than guess.
	body, err := io.ReadAll(io.LimitReader(r.Body, 1))
	if err == nil && len(body) > 0 {
		http.Error(w, "unsupported request body", http.StatusUnsupportedMediaType)
		return
	}

	exists, err := h.storage.Exists(r.Context(), tenant, path)
	if err != nil {
		h.writeStorageError(w, err, tenant, path, "MKCOL")
		return
	}
	if exists {
		http.Error(w, "already exists", http.StatusMethodNotAllowed)
		return
	}

	parent := storage.ParentPath(path)
	parentExists, err := h.storage.Exists(r.Context(), tenant, parent)
	if err != nil {
		h.writeStorageError(w, err, tenant, path, "MKCOL")
		return
	}
	if !parentExists {
		http.Error(w, "parent does not exist", http.StatusConflict)
		return
	}

	if err := h.storage.CreateDirectory(r.Context(), tenant, path); err != nil {
		h.writeStorageError(w, err, tenant, path, "MKCOL")
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// handleDelete tombstones the entry; folders recursively.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, tenant, path string) {
	if !h.checkLock(w, r, tenant, path) {
		return
	}

	if err := h.storage.Delete(r.Context(), tenant, path); err != nil {
		h.writeStorageError(w, err, tenant, path, "DELETE")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCopyMove serves COPY and MOVE, which differ only in the facade
// call and the lock surface (MOVE also mutates the source).
func (h *Handler) handleCopyMove(w http.ResponseWriter, r *http.Request, tenant, src string, move bool) {
	dst, err := parseDestination(r)
	if err != nil {
		http.Error(w, "missing or invalid Destination header", http.StatusBadRequest)
		return
	}

	if move && !h.checkLock(w, r, tenant, src) {
		return
	}
	if !h.checkLock(w, r, tenant, dst) {
		return
	}

	overwrite := parseOverwrite(r)

	var created bool
	if move {
		created, err = h.storage.Move(r.Context(), tenant, src, dst, overwrite)
	} else {
		created, err = h.storage.Copy(r.Context(), tenant, src, dst, overwrite)
	}
	if err != nil {
		var storageErr *storage.StorageError
		if errors.As(err, &storageErr) && storageErr.Code == storage.ErrAlreadyExists {
			http.Error(w, "destination exists", http.StatusPreconditionFailed)
			return
		}
		h.writeStorageError(w, err, tenant, src, r.Method)
		return
	}

	if created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}
