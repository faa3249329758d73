package render

import "strings"

// Format is a response representation
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatHTML
	FormatXML
)

// ContentType returns the media type sent for f
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html"
	case FormatXML:
		return "application/xml"
	default:
		return "text/plain"
	}
}

// String returns a short name for f
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatHTML:
		return "html"
	case FormatXML:
		return "xml"
	default:
		return "text"
	}
}

// Negotiate picks the response format from the Accept and Content-Type request headers.
//
// An Accept header naming application/json or text/html decides first, in that
// order. Otherwise a JSON request body gets JSON, XML is chosen when either
// header mentions application/xml or text/xml, and plain text in every other case.
func Negotiate(accept, contentType string) Format {
	accept = strings.ToLower(accept)
	contentType = strings.ToLower(contentType)

	switch {
	case strings.Contains(accept, "application/json"):
		return FormatJSON
	case strings.Contains(accept, "text/html"):
		return FormatHTML
	case strings.Contains(contentType, "application/json"):
		return FormatJSON
	case isXML(accept), isXML(contentType):
		return FormatXML
	default:
		return FormatText
	}
}

func isXML(mediaType string) bool {
	return strings.Contains(mediaType, "application/xml") || strings.Contains(mediaType, "text/xml")
}
