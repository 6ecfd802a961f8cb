package webdav

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marmos91/marble/pkg/storage"
)

// RFC 4918 response structures, marshalled with the conventional "D:"
// prefix bound to the DAV: namespace.

type multistatus struct {
	XMLName   xml.Name       `xml:"D:multistatus"`
	Namespace string         `xml:"xmlns:D,attr"`
	Responses []davResponse  `xml:"D:response"`
}

type davResponse struct {
	Href      string     `xml:"D:href"`
	Propstats []propstat `xml:"D:propstat"`
}

type propstat struct {
	Prop   prop   `xml:"D:prop"`
	Status string `xml:"D:status"`
}

type prop struct {
	DisplayName      string        `xml:"D:displayname,omitempty"`
	GetContentLength string        `xml:"D:getcontentlength,omitempty"`
	GetContentType   string        `xml:"D:getcontenttype,omitempty"`
	GetLastModified  string        `xml:"D:getlastmodified,omitempty"`
	GetETag          string        `xml:"D:getetag,omitempty"`
	ResourceType     *resourceType `xml:"D:resourcetype"`
}

type resourceType struct {
	Collection *struct{} `xml:"D:collection"`
}

// propResponse builds the propstat response for one entry.
func propResponse(meta *storage.FileMetadata) davResponse {
	p := prop{
		DisplayName:     displayName(meta.Path),
		GetLastModified: meta.LastModified.UTC().Format(http.TimeFormat),
		ResourceType:    &resourceType{},
	}
	if meta.IsDirectory {
		p.ResourceType.Collection = &struct{}{}
	} else {
		p.GetContentLength = strconv.FormatInt(meta.Size, 10)
		p.GetContentType = meta.ContentType
		p.GetETag = etag(meta)
	}

	return davResponse{
		Href: href(meta.Path, meta.IsDirectory),
		Propstats: []propstat{{
			Prop:   p,
			Status: "HTTP/1.1 200 OK",
		}},
	}
}

func displayName(path string) string {
	if path == "/" {
		return "/"
	}
	idx := len(path) - 1
	for idx >= 0 && path[idx] != '/' {
		idx--
	}
	return path[idx+1:]
}

// href percent-encodes a path for a response URI. Collections carry a
// trailing slash.
func href(path string, isDirectory bool) string {
	encoded := (&url.URL{Path: path}).EscapedPath()
	if isDirectory && path != "/" {
		encoded += "/"
	}
	return encoded
}

// etag derives the entity tag from the content digest.
func etag(meta *storage.FileMetadata) string {
	return `"` + string(meta.ContentHash) + `"`
}

// writeMultistatus serializes a 207 Multi-Status response.
func writeMultistatus(w http.ResponseWriter, responses []davResponse) {
	body, err := xml.Marshal(multistatus{
		Namespace: "DAV:",
		Responses: responses,
	})
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusMultiStatus)
	w.Write([]byte(xml.Header))
	w.Write(body)
}

// Request body structures. Parsing is namespace-lenient: elements are
// matched by local name, which copes with the prefix choices of real
// clients.

type propfindRequest struct {
	XMLName  xml.Name  `xml:"propfind"`
	AllProp  *struct{} `xml:"allprop"`
	PropName *struct{} `xml:"propname"`
	Prop     *struct{} `xml:"prop"`
}

// parsePropfind reads an optional PROPFIND body. An empty body means
// allprop per the RFC.
func parsePropfind(body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var request propfindRequest
	if err := xml.Unmarshal(data, &request); err != nil {
		return fmt.Errorf("malformed propfind body: %w", err)
	}
	return nil
}

type proppatchRequest struct {
	XMLName xml.Name        `xml:"propertyupdate"`
	Set     []proppatchProp `xml:"set>prop"`
	Remove  []proppatchProp `xml:"remove>prop"`
}

type proppatchProp struct {
	Properties []proppatchProperty `xml:",any"`
}

type proppatchProperty struct {
	XMLName xml.Name
}

// parseProppatch returns the names of all properties the client asked to
// set or remove.
func parseProppatch(body io.Reader) ([]string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	var request proppatchRequest
	if err := xml.Unmarshal(data, &request); err != nil {
		return nil, fmt.Errorf("malformed propertyupdate body: %w", err)
	}

	var names []string
	for _, group := range append(request.Set, request.Remove...) {
		for _, property := range group.Properties {
			names = append(names, property.XMLName.Local)
		}
	}
	return names, nil
}

type lockinfoRequest struct {
	XMLName xml.Name  `xml:"lockinfo"`
	Owner   ownerElem `xml:"owner"`
}

type ownerElem struct {
	// Owners arrive as plain text or as a nested href; both are kept
	// verbatim as an opaque string.
	Inner string `xml:",innerxml"`
}

// parseLockinfo reads a LOCK body. An empty body yields an empty owner
// (refresh-style requests carry no body).
func parseLockinfo(body io.Reader) (owner string, hasBody bool, err error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(data) == 0 {
		return "", false, nil
	}

	var request lockinfoRequest
	if err := xml.Unmarshal(data, &request); err != nil {
		return "", true, fmt.Errorf("malformed lockinfo body: %w", err)
	}
	return request.Owner.Inner, true, nil
}

// Lock response structures.

type lockDiscoveryProp struct {
	XMLName       xml.Name   `xml:"D:prop"`
	Namespace     string     `xml:"xmlns:D,attr"`
	LockDiscovery activelock `xml:"D:lockdiscovery>D:activelock"`
}

type activelock struct {
	LockScope lockScope `xml:"D:lockscope"`
	LockType  lockType  `xml:"D:locktype"`
	Depth     string    `xml:"D:depth"`
	Owner     string    `xml:"D:owner,omitempty"`
	Timeout   string    `xml:"D:timeout"`
	LockToken lockToken `xml:"D:locktoken"`
}

type lockScope struct {
	Exclusive struct{} `xml:"D:exclusive"`
}

type lockType struct {
	Write struct{} `xml:"D:write"`
}

type lockToken struct {
	Href string `xml:"D:href"`
}

// writeLockResponse serializes the lock descriptor with the Lock-Token
// header.
func writeLockResponse(w http.ResponseWriter, lock *Lock) {
	depth := "0"
	if lock.Depth == DepthInfinity {
		depth = "infinity"
	}

	body, err := xml.Marshal(lockDiscoveryProp{
		Namespace: "DAV:",
		LockDiscovery: activelock{
			Depth:     depth,
			Owner:     lock.Owner,
			Timeout:   "Second-" + strconv.FormatInt(int64(lock.Timeout/time.Second), 10),
			LockToken: lockToken{Href: lock.Token},
		},
	})
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.Header().Set("Lock-Token", "<"+lock.Token+">")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(body)
}
