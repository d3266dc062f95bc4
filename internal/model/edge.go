package model

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Edge event shapes as delivered by the CDN function runtime.

// EdgeEvent is the envelope for viewer-request and origin-response events.
type EdgeEvent struct {
	Records []EdgeRecord `json:"Records"`
}

// EdgeRecord is a single event record.
type EdgeRecord struct {
	CF EdgeCF `json:"cf"`
}

// EdgeCF holds the request and, for origin-response events, the response.
type EdgeCF struct {
	Request  EdgeRequest   `json:"request"`
	Response *EdgeResponse `json:"response,omitempty"`
}

// HeaderEntry is one header value with its original-case name.
type HeaderEntry struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

// EdgeHeaders maps lower-cased header names to their values.
type EdgeHeaders map[string][]HeaderEntry

// EdgeRequest is the request portion of an edge event.
type EdgeRequest struct {
	ClientIP    string                     `json:"clientIp,omitempty"`
	Method      string                     `json:"method,omitempty"`
	URI         string                     `json:"uri"`
	QueryString string                     `json:"querystring,omitempty"`
	Headers     EdgeHeaders                `json:"headers,omitempty"`
	Origin      map[string]json.RawMessage `json:"origin,omitempty"`
}

// IsS3Origin reports whether the request was routed to an S3 origin.
func (r EdgeRequest) IsS3Origin() bool {
	_, ok := r.Origin["s3"]
	return ok
}

// Header returns the first value of the named header, matching case-insensitively.
func (r EdgeRequest) Header(name string) string {
	return r.Headers.ToHeaders().Get(name)
}

// EdgeResponse is the response object returned to the function runtime.
type EdgeResponse struct {
	Status            string      `json:"status"`
	StatusDescription string      `json:"statusDescription,omitempty"`
	Headers           EdgeHeaders `json:"headers,omitempty"`
	BodyEncoding      string      `json:"bodyEncoding,omitempty"`
	Body              string      `json:"body,omitempty"`
}

// ToHeaders converts the edge mapping into Headers.
func (e EdgeHeaders) ToHeaders() Headers {
	h := make(Headers, len(e))
	for name, entries := range e {
		for _, entry := range entries {
			key := entry.Key
			if key == "" {
				key = name
			}
			http.Header(h).Add(key, entry.Value)
		}
	}
	return h
}

// ToEdge renders Headers in the edge mapping shape.
func (h Headers) ToEdge() EdgeHeaders {
	out := make(EdgeHeaders, len(h))
	for _, name := range h.Names() {
		entries := make([]HeaderEntry, 0, len(h[name]))
		for _, v := range h[name] {
			entries = append(entries, HeaderEntry{Key: name, Value: v})
		}
		out[strings.ToLower(name)] = entries
	}
	return out
}
