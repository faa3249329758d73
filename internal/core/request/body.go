package request

import "bytes"

// BodyKind tells which variant a Body holds
type BodyKind uint8

const (
	BodyNone BodyKind = iota
	BodyText
	BodyStructured
	BodyError
)

// String returns a short label for the kind
func (k BodyKind) String() string {
	switch k {
	case BodyText:
		return "text"
	case BodyStructured:
		return "structured"
	case BodyError:
		return "error"
	default:
		return "none"
	}
}

// Body is the decoded request body.
// It is one of: no body, verbatim text, a structured value, or a parse error message.
type Body struct {
	kind  BodyKind
	text  string
	value any
}

// NoBody is the body of a request without content
func NoBody() Body {
	return Body{kind: BodyNone}
}

// TextBody wraps verbatim body text
func TextBody(text string) Body {
	return Body{kind: BodyText, text: text}
}

// StructuredBody wraps a decoded value (object, array, form values or scalar)
func StructuredBody(value any) Body {
	return Body{kind: BodyStructured, value: value}
}

// ErrorBody records why the body could not be decoded
func ErrorBody(message string) Body {
	return Body{kind: BodyError, text: message}
}

// Kind returns the variant held by b
func (b Body) Kind() BodyKind {
	return b.kind
}

// Text returns the verbatim text of a BodyText
func (b Body) Text() string {
	if b.kind == BodyText {
		return b.text
	}
	return ""
}

// Error returns the message of a BodyError
func (b Body) Error() string {
	if b.kind == BodyError {
		return b.text
	}
	return ""
}

// Value returns the value shown to clients: nil for no body, the text for
// text bodies, the decoded value for structured bodies and an
// {"error": message} object for parse errors.
func (b Body) Value() any {
	switch b.kind {
	case BodyText:
		return b.text
	case BodyStructured:
		return b.value
	case BodyError:
		obj := NewObject()
		obj.Set("error", b.text)
		return obj
	default:
		return nil
	}
}

// IsStructured reports whether the body renders as a JSON document rather than raw text
func (b Body) IsStructured() bool {
	return b.kind == BodyStructured || b.kind == BodyError
}

// MarshalJSON renders the client-visible value of b
func (b Body) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSONValue(&buf, b.Value()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
