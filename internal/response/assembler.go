// Package response builds the responses returned to the edge platform.
package response

import (
	"encoding/base64"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/model"
)

const (
	bodyEncodingBase64 = "base64"

	// FailureBody is returned for every failed transform.
	FailureBody = "Error while getting origin body response"
)

// deniedHeaders are names the edge platform refuses in function-generated
// responses, plus hop-by-hop headers.
var deniedHeaders = []string{
	"connection",
	"expect",
	"keep-alive",
	"proxy-authenticate",
	"proxy-authorization",
	"proxy-connection",
	"te",
	"trailer",
	"transfer-encoding",
	"upgrade",
	"via",
	"x-cache",
	"x-forwarded-proto",
	"x-real-ip",
	"content-length",
}

// deniedPatterns cover whole families of reserved headers.
var deniedPatterns = []string{
	`x-accel-.*`,
	`x-amz-cf-.*`,
	`x-amzn-.*`,
	`x-edge-.*`,
}

// propagated are copied from the origin response when present.
var propagated = []string{"Cache-Control", "Expires", "Last-Modified"}

// Assembler applies the response header policy.
type Assembler struct {
	denied              map[string]bool
	patterns            []*regexp.Regexp
	defaultCacheControl string
}

// NewAssembler creates an Assembler from the built-in deny-list extended by config.
func NewAssembler(cfg *config.Config) (*Assembler, error) {
	a := &Assembler{
		denied:              make(map[string]bool),
		defaultCacheControl: cfg.Response.DefaultCacheControl,
	}
	for _, name := range slices.Concat(deniedHeaders, cfg.Response.DenyHeaders) {
		a.denied[strings.ToLower(name)] = true
	}
	for _, p := range slices.Concat(deniedPatterns, cfg.Response.DenyPatterns) {
		re, err := regexp.Compile(`^(?i:` + p + `)$`)
		if err != nil {
			return nil, err
		}
		a.patterns = append(a.patterns, re)
	}
	return a, nil
}

// Denied reports whether a header name is on the deny-list.
func (a *Assembler) Denied(name string) bool {
	lower := strings.ToLower(name)
	if a.denied[lower] {
		return true
	}
	for _, re := range a.patterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// Headers builds the success headers for result. base holds headers the
// platform already attached (may be nil); origin holds the origin's
// response headers.
func (a *Assembler) Headers(base model.Headers, origin http.Header, result *model.TransformResult) model.Headers {
	h := make(model.Headers)
	for k, v := range base {
		h[k] = v
	}

	h.Set("Content-Type", result.MimeType)

	for _, name := range propagated {
		h.Del(name)
		if v := origin.Get(name); v != "" {
			h.Set(name, v)
		}
	}
	if !h.Has("Cache-Control") {
		h.Set("Cache-Control", a.defaultCacheControl)
	}

	// The body is no longer the bytes the origin sent or described.
	h.Del("Content-Encoding")
	h.Del("Etag")

	h.DeleteFunc(a.Denied)
	return h
}

// CacheControl returns the policy stored with a cached variant.
func (a *Assembler) CacheControl(h model.Headers) string {
	if cc := h.Get("Cache-Control"); cc != "" {
		return cc
	}
	return a.defaultCacheControl
}

// Success renders the edge envelope for a transformed variant.
func (a *Assembler) Success(headers model.Headers, result *model.TransformResult) *model.EdgeResponse {
	return &model.EdgeResponse{
		Status:            "200",
		StatusDescription: "OK",
		Headers:           headers.ToEdge(),
		BodyEncoding:      bodyEncodingBase64,
		Body:              base64.StdEncoding.EncodeToString(result.Body),
	}
}

// Failure renders the generic failure envelope. It never carries error detail.
func (a *Assembler) Failure(base model.Headers) *model.EdgeResponse {
	h := make(model.Headers)
	for k, v := range base {
		h[k] = v
	}
	for _, name := range []string{"Content-Encoding", "Cache-Control", "Expires", "Last-Modified", "Etag"} {
		h.Del(name)
	}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.DeleteFunc(a.Denied)

	return &model.EdgeResponse{
		Status:            "500",
		StatusDescription: "Internal Server Error",
		Headers:           h.ToEdge(),
		Body:              FailureBody,
	}
}
