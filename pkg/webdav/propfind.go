package webdav

import (
	"net/http"
	"strings"

	"github.com/marmos91/marble/internal/logger"
	"github.com/marmos91/marble/pkg/storage"
)

// handlePropfind serves PROPFIND. The RFC default depth is infinity,
// which is refused with 403 unless explicitly enabled.
func (h *Handler) handlePropfind(w http.ResponseWriter, r *http.Request, tenant, path string) {
	depth, ok := parseDepth(r, "infinity")
	if !ok {
		http.Error(w, "invalid Depth header", http.StatusBadRequest)
		return
	}
	if depth == "infinity" && !h.allowDepthInfinity {
		http.Error(w, "Depth: infinity is not supported", http.StatusForbidden)
		return
	}

	if err := parsePropfind(r.Body); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	meta, err := h.storage.Metadata(r.Context(), tenant, path)
	if err != nil {
		h.writeStorageError(w, err, tenant, path, "PROPFIND")
		return
	}

	responses := []davResponse{propResponse(meta)}

	if meta.IsDirectory && depth != "0" {
		children, err := h.collectChildren(r, tenant, path, depth == "infinity")
		if err != nil {
			h.writeStorageError(w, err, tenant, path, "PROPFIND")
			return
		}
		responses = append(responses, children...)
	}

	writeMultistatus(w, responses)
}

// collectChildren lists a collection's members, recursing when the
// request asked for the whole subtree.
func (h *Handler) collectChildren(r *http.Request, tenant, path string, recurse bool) ([]davResponse, error) {
	entries, err := h.storage.List(r.Context(), tenant, path)
	if err != nil {
		return nil, err
	}

	var responses []davResponse
	for _, entry := range entries {
		childPath := storage.JoinPath(path, entry)
		meta, err := h.storage.Metadata(r.Context(), tenant, childPath)
		if err != nil {
			return nil, err
		}
		responses = append(responses, propResponse(meta))

		if recurse && meta.IsDirectory {
			nested, err := h.collectChildren(r, tenant, childPath, true)
			if err != nil {
				return nil, err
			}
			responses = append(responses, nested...)
		}
	}
	return responses, nil
}

// handleProppatch acknowledges property updates without storing them.
// Dead properties are not persisted. The response is a single propstat
// with an empty prop and status 200 OK for the resource; the individual
// property names are logged, not listed in the response.
func (h *Handler) handleProppatch(w http.ResponseWriter, r *http.Request, tenant, path string) {
	if !h.checkLock(w, r, tenant, path) {
		return
	}

	names, err := parseProppatch(r.Body)
	if err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	meta, err := h.storage.Metadata(r.Context(), tenant, path)
	if err != nil {
		h.writeStorageError(w, err, tenant, path, "PROPPATCH")
		return
	}

	if len(names) > 0 {
		logger.Debug("PROPPATCH tenant=%s path=%s properties=%s", tenant, path, strings.Join(names, ","))
	}

	response := davResponse{
		Href: href(meta.Path, meta.IsDirectory),
		Propstats: []propstat{{
			Status: "HTTP/1.1 200 OK",
		}},
	}

	writeMultistatus(w, []davResponse{response})
}
