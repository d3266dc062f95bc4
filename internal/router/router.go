// Package router rewrites viewer request paths into format namespaces so
// that cached variants are partitioned by client capability.
package router

import (
	"strings"

	"edge-resizer-go/internal/model"
	"edge-resizer-go/internal/negotiate"
)

// Namespace picks the namespace for a capability header.
func Namespace(accept string) model.Namespace {
	if negotiate.AcceptsWebP(accept) {
		return model.NamespaceWebP
	}
	return model.NamespaceOriginal
}

// Rewrite prefixes path with the namespace chosen from accept.
func Rewrite(path, accept string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "/" + string(Namespace(accept)) + path
}

// HasNamespace reports whether path already starts with a namespace segment.
func HasNamespace(path string) bool {
	for _, ns := range []model.Namespace{model.NamespaceWebP, model.NamespaceOriginal} {
		prefix := "/" + string(ns)
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// RewriteEvent applies Rewrite to a viewer-request event record in place
// and returns the rewritten request.
func RewriteEvent(req *model.EdgeRequest) *model.EdgeRequest {
	req.URI = Rewrite(req.URI, req.Header("Accept"))
	return req
}
