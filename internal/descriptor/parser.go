// Package descriptor parses transform request paths of the form
//
//	[/<namespace>][/tr:<directives>]/<origin key>
//
// into model.Descriptor values.
package descriptor

import (
	"regexp"
	"strconv"
	"strings"

	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/model"
)

// pathPattern groups: 2 = namespace, 3 = directive segment with trailing slash, 4 = origin key.
var pathPattern = regexp.MustCompile(`^(/(webp|original))?/(tr:.+?/)?(.*)$`)

const directivePrefix = "tr:"

// Parser turns request paths into descriptors.
type Parser struct {
	defaultWidth *int
}

// NewParser creates a Parser using the deployment's default width.
func NewParser(cfg *config.Config) *Parser {
	return &Parser{defaultWidth: cfg.Transform.DefaultWidth}
}

// Parse builds a descriptor from a request path. Paths outside the grammar
// produce a pass-through descriptor whose origin key is the whole path.
func (p *Parser) Parse(path string) model.Descriptor {
	m := pathPattern.FindStringSubmatch(path)
	if m == nil {
		return model.Descriptor{
			Namespace:   model.NamespaceOriginal,
			OriginKey:   strings.TrimPrefix(path, "/"),
			RequestPath: path,
		}
	}

	d := model.Descriptor{
		Namespace:   model.NamespaceOriginal,
		OriginKey:   m[4],
		RequestPath: path,
	}
	if m[2] != "" {
		d.Namespace = model.Namespace(m[2])
	}
	if m[3] != "" {
		d.Params, d.Directive = p.parseDirectives(m[3])
	}
	return d
}

// parseDirectives parses a "tr:w-200,h-100/" segment.
func (p *Parser) parseDirectives(segment string) (model.Params, model.DirectiveState) {
	list := strings.TrimSuffix(strings.TrimPrefix(segment, directivePrefix), "/")
	if list == "" {
		return model.Params{}, model.DirectiveEmpty
	}

	var params model.Params
	for _, item := range strings.Split(list, ",") {
		key, value, _ := strings.Cut(item, "-")
		switch key {
		case "w":
			params.Width = leadingInt(value)
		case "h":
			params.Height = leadingInt(value)
		case "":
		default:
			if params.Extra == nil {
				params.Extra = make(map[string]string)
			}
			params.Extra[key] = value
		}
	}

	if params.Width == nil && params.Height != nil && p.defaultWidth != nil {
		w := *p.defaultWidth
		params.Width = &w
	}

	if params.IsZero() {
		return params, model.DirectiveEmpty
	}
	return params, model.DirectiveParsed
}

// leadingInt parses the leading decimal digits of s ("200px" -> 200).
// It returns nil when s has no leading digits or the value is not positive.
func leadingInt(s string) *int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
