// Package template compiles the key template strings used to derive
// secondary index keys from documents (spec section 4.2).
//
// A template is literal text interspersed with {attr} or {attr:spec}
// placeholders, where spec is a printf-style format specifier such as
// "03" (zero-padded width 3) or "05.2f". {{ and }} escape a literal brace.
// Compilation happens once, at index-creation time, so a malformed template
// fails at the declaration site rather than on first write.
package template

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/oddjobz/nndb/document"
	"github.com/oddjobz/nndb/nndberr"
)

type chunk struct {
	literal []byte
	attr    string
	spec    string
	isAttr  bool
}

// Template is a pure function from document to key bytes.
type Template struct {
	Source string
	chunks []chunk
}

// Attrs returns the attribute names this template references, in order of
// first appearance.
func (t *Template) Attrs() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range t.chunks {
		if c.isAttr && !seen[c.attr] {
			seen[c.attr] = true
			out = append(out, c.attr)
		}
	}
	return out
}

// Compile parses src into a Template, rejecting malformed input immediately.
func Compile(src string) (*Template, error) {
	t := &Template{Source: src}
	var lit bytes.Buffer

	flush := func() {
		if lit.Len() > 0 {
			t.chunks = append(t.chunks, chunk{literal: append([]byte(nil), lit.Bytes()...)})
			lit.Reset()
		}
	}

	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '{':
			if i+1 < len(src) && src[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return nil, nndberr.Wrap("Compile", fmt.Errorf("%w: unterminated placeholder in %q", nndberr.ErrBadTemplate, src))
			}
			body := src[i+1 : i+end]
			if body == "" {
				return nil, nndberr.Wrap("Compile", fmt.Errorf("%w: empty placeholder in %q", nndberr.ErrBadTemplate, src))
			}
			attr, spec, _ := strings.Cut(body, ":")
			if err := validateSpec(spec); err != nil {
				return nil, nndberr.Wrap("Compile", fmt.Errorf("%w: %s: %v", nndberr.ErrBadTemplate, src, err))
			}
			flush()
			t.chunks = append(t.chunks, chunk{attr: attr, spec: spec, isAttr: true})
			i += end + 1
		case '}':
			if i+1 < len(src) && src[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, nndberr.Wrap("Compile", fmt.Errorf("%w: stray '}' in %q", nndberr.ErrBadTemplate, src))
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()

	if len(t.chunks) == 0 {
		return nil, nndberr.Wrap("Compile", fmt.Errorf("%w: empty template", nndberr.ErrBadTemplate))
	}
	return t, nil
}

// validateSpec rejects specs that fmt would choke on or that contain a verb
// letter we don't support, by dry-running it against representative values.
func validateSpec(spec string) error {
	if spec == "" {
		return nil
	}
	for _, sample := range []any{int64(0), 0.0, "x"} {
		if _, err := format(sample, spec); err == nil {
			return nil
		}
	}
	return fmt.Errorf("spec %q does not apply to any supported value type", spec)
}

// Eval derives the index key for doc, or reports false if any referenced
// attribute is missing (the partial-index semantics of spec section 4.2).
func (t *Template) Eval(doc document.Document) ([]byte, bool) {
	var buf bytes.Buffer
	for _, c := range t.chunks {
		if !c.isAttr {
			buf.Write(c.literal)
			continue
		}
		v, ok := doc[c.attr]
		if !ok {
			return nil, false
		}
		s, err := format(v, c.spec)
		if err != nil {
			return nil, false
		}
		buf.WriteString(s)
	}
	return buf.Bytes(), true
}

// format renders v using spec, a printf flag/width/precision string with an
// optional trailing verb letter. When spec carries no verb letter, one is
// inferred from v's dynamic type so callers can write "{age:03}" instead of
// the more verbose "{age:03d}".
func format(v any, spec string) (string, error) {
	verb := inferVerb(v, spec)
	layout := "%" + spec
	if !hasVerbLetter(spec) {
		layout += string(verb)
	}
	arg, err := coerceForVerb(v, verb)
	if err != nil {
		return "", err
	}
	out := fmt.Sprintf(layout, arg)
	if strings.Contains(out, "%!") {
		return "", fmt.Errorf("bad format %q for %T", layout, v)
	}
	return out, nil
}

func hasVerbLetter(spec string) bool {
	if spec == "" {
		return false
	}
	last := spec[len(spec)-1]
	return (last >= 'a' && last <= 'z') || (last >= 'A' && last <= 'Z')
}

func inferVerb(v any, spec string) byte {
	if hasVerbLetter(spec) {
		return spec[len(spec)-1]
	}
	switch t := v.(type) {
	case bool:
		return 't'
	case []byte:
		return 'x'
	case string:
		return 's'
	case float32, float64:
		// JSON round-trips every number as float64. A spec with no decimal
		// point (e.g. "03") means "zero-padded integer" even when the
		// underlying value is a whole float64 — only a spec with "." asks
		// for floating-point rendering.
		f := toFloat64Unchecked(t)
		if !strings.Contains(spec, ".") && f == float64(int64(f)) {
			return 'd'
		}
		return 'f'
	default:
		return 'd'
	}
}

func toFloat64Unchecked(v any) float64 {
	f, _ := toFloat64(v)
	return f
}

func coerceForVerb(v any, verb byte) (any, error) {
	switch verb {
	case 's', 'q', 'v':
		return toString(v), nil
	case 'd', 'b', 'o', 'x', 'X':
		i, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return i, nil
	case 'f', 'e', 'g', 'F', 'E', 'G':
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return f, nil
	case 't':
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%v is not a bool", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported verb %q", string(verb))
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not numeric", v, v)
	}
}

func toFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, err
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not numeric", v, v)
	}
}
