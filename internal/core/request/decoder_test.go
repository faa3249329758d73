package request

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// newIncoming builds an incoming request with a Content-Length matching body
func newIncoming(method Method, target, contentType string, body []byte) Incoming {
	headers := Headers{{Name: "Host", Value: "localhost:8000"}}
	if contentType != "" {
		headers.Add("Content-Type", contentType)
	}
	if len(body) > 0 {
		headers.Add("Content-Length", strconv.Itoa(len(body)))
	}
	return Incoming{
		Method:   method,
		Target:   target,
		Version:  "HTTP/1.1",
		ClientIP: "127.0.0.1",
		Headers:  headers,
		Body:     body,
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 250_000_000, time.UTC)
}

// TestDecoder_Decode_PopulatesDescription tests that the request line and metadata are copied through
func TestDecoder_Decode_PopulatesDescription(t *testing.T) {
	dec := &Decoder{Clock: fixedClock}
	in := newIncoming(MethodGet, "/foo?x=1&y=a+b", "", nil)

	desc := dec.Decode(in)

	assert.Equal(t, MethodGet, desc.Method)
	assert.Equal(t, "/foo?x=1&y=a+b", desc.Path, "Path should keep the raw target including the query")
	assert.Equal(t, "HTTP/1.1", desc.HTTPVersion)
	assert.Equal(t, "127.0.0.1", desc.ClientIP)
	assert.Equal(t, in.Headers, desc.Headers)
	assert.Equal(t, []string{"1"}, desc.Query.Get("x"))
	assert.Equal(t, []string{"a b"}, desc.Query.Get("y"))
	assert.Equal(t, BodyNone, desc.Body.Kind(), "GET without Content-Length has no body")
	assert.Equal(t, fixedClock(), desc.Timestamp)
	assert.InDelta(t, 1709993107.25, desc.Seconds(), 1e-6)
}

// TestDecoder_Decode_HeadersAreNotShared tests that the description owns its header slice
func TestDecoder_Decode_HeadersAreNotShared(t *testing.T) {
	in := newIncoming(MethodGet, "/", "", nil)
	desc := NewDecoder().Decode(in)

	in.Headers[0].Value = "changed"

	assert.Equal(t, "localhost:8000", desc.Headers[0].Value)
}

// TestDecodeBody_ContentTypes_SelectsParser tests the content-type dispatch table
func TestDecodeBody_ContentTypes_SelectsParser(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantKind    BodyKind
		wantJSON    string
		description string
	}{
		{
			name:        "JSONObject_ShouldDecode",
			contentType: "application/json",
			body:        []byte(`{"b":1,"a":[true,null,"x"]}`),
			wantKind:    BodyStructured,
			wantJSON:    `{"b":1,"a":[true,null,"x"]}`,
			description: "JSON objects keep member order",
		},
		{
			name:        "JSONWithCharset_ShouldDecode",
			contentType: "Application/JSON; charset=utf-8",
			body:        []byte(`[1, 2]`),
			wantKind:    BodyStructured,
			wantJSON:    `[1,2]`,
			description: "Content type match is case-insensitive",
		},
		{
			name:        "MalformedJSON_ShouldReportError",
			contentType: "application/json",
			body:        []byte(`{"a":`),
			wantKind:    BodyError,
			wantJSON:    `{"error":"Invalid JSON"}`,
			description: "Malformed JSON becomes an error map",
		},
		{
			name:        "TrailingJSON_ShouldReportError",
			contentType: "application/json",
			body:        []byte(`{} {}`),
			wantKind:    BodyError,
			wantJSON:    `{"error":"Invalid JSON"}`,
			description: "Extra data after the document is rejected",
		},
		{
			name:        "Form_ShouldKeepDuplicates",
			contentType: "application/x-www-form-urlencoded",
			body:        []byte(`tag=a&name=J%C3%B6rg&tag=b`),
			wantKind:    BodyStructured,
			wantJSON:    `{"tag":["a","b"],"name":["Jörg"]}`,
			description: "Form keys map to ordered value lists",
		},
		{
			name:        "XML_ShouldBeVerbatim",
			contentType: "text/xml",
			body:        []byte(`<a><b>1</b></a>`),
			wantKind:    BodyText,
			wantJSON:    `"<a><b>1</b></a>"`,
			description: "XML is not parsed structurally",
		},
		{
			name:        "InvalidXMLEncoding_ShouldReportError",
			contentType: "application/xml",
			body:        []byte{'<', 0xff, '>'},
			wantKind:    BodyError,
			wantJSON:    `{"error":"Invalid XML encoding"}`,
			description: "XML must be UTF-8",
		},
		{
			name:        "PlainText_ShouldBeVerbatim",
			contentType: "text/plain",
			body:        []byte("hello\nworld"),
			wantKind:    BodyText,
			wantJSON:    `"hello\nworld"`,
			description: "Unknown types are echoed as text",
		},
		{
			name:        "MissingContentType_ShouldBeText",
			contentType: "",
			body:        []byte("raw"),
			wantKind:    BodyText,
			wantJSON:    `"raw"`,
			description: "No content type falls through to text",
		},
		{
			name:        "BinaryText_ShouldReportError",
			contentType: "application/octet-stream",
			body:        []byte{0xc3, 0x28},
			wantKind:    BodyError,
			wantJSON:    `{"error":"Unable to decode body"}`,
			description: "Invalid UTF-8 cannot be echoed as text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newIncoming(MethodPost, "/", tt.contentType, tt.body)

			body := DecodeBody(in.Headers, in.Body)

			assert.Equal(t, tt.wantKind, body.Kind(), tt.description)
			got, err := json.Marshal(body)
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantJSON, string(got), tt.description)
		})
	}
}

// TestDecodeBody_ContentLength_GatesBody tests that bodies are only decoded when a positive length is declared
func TestDecodeBody_ContentLength_GatesBody(t *testing.T) {
	tests := []struct {
		name   string
		length string
	}{
		{name: "Missing", length: ""},
		{name: "Zero", length: "0"},
		{name: "NotANumber", length: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := Headers{{Name: "Content-Type", Value: "text/plain"}}
			if tt.length != "" {
				headers.Add("Content-Length", tt.length)
			}

			body := DecodeBody(headers, []byte("ignored"))

			assert.Equal(t, BodyNone, body.Kind())
			assert.Nil(t, body.Value())
		})
	}
}

// TestDecodeBody_JSON_NestingDepth tests that nesting is bounded instead of exhausting the stack
func TestDecodeBody_JSON_NestingDepth(t *testing.T) {
	nested := func(depth int) []byte {
		return []byte(strings.Repeat("[", depth) + strings.Repeat("]", depth))
	}

	tests := []struct {
		name        string
		body        []byte
		wantKind    BodyKind
		description string
	}{
		{
			name:        "UnterminatedOpeners_ShouldReportError",
			body:        bytes.Repeat([]byte("["), 5_000_000),
			wantKind:    BodyError,
			description: "Millions of open brackets are rejected without recursing to the end",
		},
		{
			name:        "DeepButWithinLimit_ShouldDecode",
			body:        nested(maxJSONDepth),
			wantKind:    BodyStructured,
			description: "Nesting up to the limit is accepted",
		},
		{
			name:        "DeeperThanLimit_ShouldReportError",
			body:        nested(maxJSONDepth + 1),
			wantKind:    BodyError,
			description: "Well-formed documents beyond the limit are rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := Headers{
				{Name: "Content-Type", Value: "application/json"},
				{Name: "Content-Length", Value: strconv.Itoa(len(tt.body))},
			}

			body := DecodeBody(headers, tt.body)

			assert.Equal(t, tt.wantKind, body.Kind(), tt.description)
			if tt.wantKind == BodyError {
				assert.Equal(t, MsgInvalidJSON, body.Error())
			}
		})
	}
}

// TestDecodeBody_JSON_KeepsNumbersExact tests that large numbers are not rounded through float64
func TestDecodeBody_JSON_KeepsNumbersExact(t *testing.T) {
	raw := []byte(`{"id":12345678901234567890,"ratio":0.10}`)
	headers := Headers{{Name: "Content-Type", Value: "application/json"}, {Name: "Content-Length", Value: strconv.Itoa(len(raw))}}

	body := DecodeBody(headers, raw)
	got, err := json.Marshal(body)

	require.NoError(t, err)
	assert.Equal(t, `{"id":12345678901234567890,"ratio":0.10}`, string(got))
}

// TestDecodeBody_PropertyBased_JSONRoundTrip tests that any JSON object body is echoed as an equivalent structure
func TestDecodeBody_PropertyBased_JSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := rapid.MapOf(
			rapid.StringMatching(`[a-zA-Z_][a-zA-Z0-9_]{0,10}`),
			rapid.OneOf(
				rapid.Map(rapid.String(), func(s string) any { return s }),
				rapid.Map(rapid.IntRange(-1_000_000, 1_000_000), func(i int) any { return float64(i) }),
				rapid.Map(rapid.Bool(), func(b bool) any { return b }),
				rapid.Just[any](nil),
			),
		).Draw(t, "document")

		raw, err := json.Marshal(original)
		require.NoError(t, err)
		headers := Headers{{Name: "Content-Type", Value: "application/json"}, {Name: "Content-Length", Value: strconv.Itoa(len(raw))}}

		body := DecodeBody(headers, raw)
		require.Equal(t, BodyStructured, body.Kind())

		echoed, err := json.Marshal(body)
		require.NoError(t, err)

		var roundTripped map[string]any
		require.NoError(t, json.Unmarshal(echoed, &roundTripped))
		assert.Equal(t, original, roundTripped)
	})
}

// TestDecodeBody_PropertyBased_MalformedJSON tests that truncated JSON never escapes as a failure
func TestDecodeBody_PropertyBased_MalformedJSON(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "key")
		raw := []byte(`{"` + key + `": [1, 2`)
		headers := Headers{{Name: "Content-Type", Value: "application/json"}, {Name: "Content-Length", Value: strconv.Itoa(len(raw))}}

		body := DecodeBody(headers, raw)

		assert.Equal(t, BodyError, body.Kind())
		assert.Equal(t, MsgInvalidJSON, body.Error())
	})
}
