package request

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Messages reported in place of a body that could not be decoded
const (
	MsgInvalidJSON        = "Invalid JSON"
	MsgInvalidXMLEncoding = "Invalid XML encoding"
	MsgUndecodableBody    = "Unable to decode body"
	MsgMultipartPrefix    = "Failed to parse multipart/form-data: "
)

// Decoder turns an Incoming request into a Description.
// The zero value is ready to use and stamps descriptions with time.Now.
type Decoder struct {
	// Clock overrides the timestamp source
	Clock func() time.Time
}

// NewDecoder creates a decoder using the wall clock
func NewDecoder() *Decoder {
	return &Decoder{Clock: time.Now}
}

// Decode builds the description of in. It never fails: a body that cannot be
// parsed is reported as an error body.
func (d *Decoder) Decode(in Incoming) *Description {
	now := time.Now
	if d != nil && d.Clock != nil {
		now = d.Clock
	}

	_, rawQuery := SplitTarget(in.Target)

	return &Description{
		Method:      in.Method,
		Path:        in.Target,
		HTTPVersion: in.Version,
		Headers:     in.Headers.Clone(),
		ClientIP:    in.ClientIP,
		Query:       ParseQuery(rawQuery),
		Body:        DecodeBody(in.Headers, in.Body),
		Timestamp:   now(),
	}
}

// DecodeBody decodes raw according to the Content-Length and Content-Type headers.
func DecodeBody(headers Headers, raw []byte) Body {
	if declaredLength(headers) <= 0 {
		return NoBody()
	}

	contentType := headers.Get("Content-Type")
	lower := strings.ToLower(contentType)

	switch {
	case strings.Contains(lower, "application/json"):
		v, err := decodeJSON(raw)
		if err != nil {
			return ErrorBody(MsgInvalidJSON)
		}
		return StructuredBody(v)

	case strings.Contains(lower, "application/x-www-form-urlencoded"):
		if !utf8.Valid(raw) {
			return ErrorBody(MsgUndecodableBody)
		}
		return StructuredBody(ParseQuery(string(raw)))

	case strings.Contains(lower, "multipart/form-data"):
		fields, err := ParseMultipart(contentType, raw)
		if err != nil {
			return ErrorBody(MsgMultipartPrefix + err.Error())
		}
		return StructuredBody(fields)

	case strings.Contains(lower, "application/xml"), strings.Contains(lower, "text/xml"):
		if !utf8.Valid(raw) {
			return ErrorBody(MsgInvalidXMLEncoding)
		}
		return TextBody(string(raw))

	default:
		if !utf8.Valid(raw) {
			return ErrorBody(MsgUndecodableBody)
		}
		return TextBody(string(raw))
	}
}

// declaredLength returns the Content-Length header value, or 0 when it is
// missing or not a number.
func declaredLength(headers Headers) int64 {
	v := strings.TrimSpace(headers.Get("Content-Length"))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
