// Package model defines shared types for the resizer.
package model

// Namespace partitions cached variants by negotiated output codec.
type Namespace string

const (
	NamespaceWebP     Namespace = "webp"
	NamespaceOriginal Namespace = "original"
)

// Params holds the resize directives carried in a request path.
// A nil Width or Height means the axis is unconstrained.
type Params struct {
	Width  *int
	Height *int
	// Extra carries unrecognized directive keys verbatim.
	Extra map[string]string
}

// IsZero reports whether no resize is requested.
func (p Params) IsZero() bool {
	return p.Width == nil && p.Height == nil
}

// DirectiveState records whether the tr: segment was present in the path.
type DirectiveState int

const (
	// DirectiveAbsent means the path carried no tr: segment.
	DirectiveAbsent DirectiveState = iota
	// DirectiveEmpty means a tr: segment was present but yielded no w/h keys.
	DirectiveEmpty
	// DirectiveParsed means at least one of w/h was recognized.
	DirectiveParsed
)

func (s DirectiveState) String() string {
	switch s {
	case DirectiveEmpty:
		return "empty"
	case DirectiveParsed:
		return "parsed"
	default:
		return "absent"
	}
}

// Descriptor is the parsed form of a transform request path.
// It is built once per request and never mutated.
type Descriptor struct {
	Namespace Namespace
	Params    Params
	Directive DirectiveState
	// OriginKey is the origin object key, without leading slash and without
	// the tr: segment.
	OriginKey string
	// RequestPath is the raw path the descriptor was parsed from.
	RequestPath string
}

// OriginPath returns the origin key as an absolute path.
func (d Descriptor) OriginPath() string {
	return "/" + d.OriginKey
}
