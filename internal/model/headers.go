package model

import (
	"net/http"
	"slices"
	"strings"
)

// Headers is a header mapping with case-insensitive lookup.
// Keys are stored in canonical MIME form.
type Headers http.Header

// HeadersFrom copies src into a new Headers value.
func HeadersFrom(src http.Header) Headers {
	h := make(Headers, len(src))
	for k, vals := range src {
		h[http.CanonicalHeaderKey(k)] = slices.Clone(vals)
	}
	return h
}

// Get returns the first value for name, or "".
func (h Headers) Get(name string) string {
	return http.Header(h).Get(name)
}

// Values returns all values for name.
func (h Headers) Values(name string) []string {
	return http.Header(h).Values(name)
}

// Has reports whether name has at least one value.
func (h Headers) Has(name string) bool {
	return len(h.Values(name)) > 0
}

// Set replaces the values for name.
func (h Headers) Set(name, value string) {
	http.Header(h).Set(name, value)
}

// Del removes name.
func (h Headers) Del(name string) {
	http.Header(h).Del(name)
}

// DeleteFunc removes every header whose lower-cased name satisfies drop.
func (h Headers) DeleteFunc(drop func(lowerName string) bool) {
	for k := range h {
		if drop(strings.ToLower(k)) {
			delete(h, k)
		}
	}
}

// Names returns the header names in sorted order.
func (h Headers) Names() []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// HTTP returns the mapping as an http.Header.
func (h Headers) HTTP() http.Header {
	return http.Header(h)
}
