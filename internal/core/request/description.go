package request

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Method is an HTTP request method
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// String returns the method token
func (m Method) String() string {
	return string(m)
}

// Header is a single header field as received
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header list. Duplicate names are kept as separate entries.
type Headers []Header

// Get returns the first value for name, matched case-insensitively
func (h Headers) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Has reports whether a header named name is present
func (h Headers) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Add appends a header field
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Set replaces every field named name with a single field, keeping the position of the first one
func (h *Headers) Set(name, value string) {
	out := (*h)[:0]
	replaced := false
	for _, f := range *h {
		if strings.EqualFold(f.Name, name) {
			if replaced {
				continue
			}
			f.Value = value
			replaced = true
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, Header{Name: name, Value: value})
	}
	*h = out
}

// Clone returns a copy that does not share storage with h
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// MarshalJSON renders the headers as an object in arrival order.
// Repeated names are combined into one member with values joined by ", ".
func (h Headers) MarshalJSON() ([]byte, error) {
	var names []string
	combined := make(map[string]string, len(h))
	for _, f := range h {
		if prev, ok := combined[f.Name]; ok {
			combined[f.Name] = prev + ", " + f.Value
			continue
		}
		names = append(names, f.Name)
		combined[f.Name] = f.Value
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONMember(&buf, name, combined[name]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Incoming is one fully-read request as handed over by the transport
type Incoming struct {
	Method   Method
	Target   string
	Version  string
	ClientIP string
	Headers  Headers
	Body     []byte
}

// Description is the normalized view of a single request.
// It is built by Decoder.Decode and is not modified afterwards.
type Description struct {
	Method      Method
	Path        string
	HTTPVersion string
	Headers     Headers
	ClientIP    string
	Query       Values
	Body        Body
	Timestamp   time.Time
}

// Seconds returns the timestamp as fractional seconds since the Unix epoch
func (d *Description) Seconds() float64 {
	return float64(d.Timestamp.UnixNano()) / float64(time.Second)
}

// writeJSONMember writes `"key":value` without escaping HTML characters
func writeJSONMember(buf *bytes.Buffer, key string, value any) error {
	if err := writeJSONValue(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return writeJSONValue(buf, value)
}

func writeJSONValue(buf *bytes.Buffer, value any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return err
	}
	// Encode terminates every value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}
