package request

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"strings"
	"unicode/utf8"
)

var (
	ErrMissingBoundary  = errors.New("missing boundary parameter")
	ErrUnexpectedEnd    = errors.New("unexpected end of data before closing boundary")
	ErrBoundaryNotFound = errors.New("boundary not found in body")
)

// ParseMultipart decodes a multipart/form-data body into an Object mapping each
// field name to its value. Values are strings when the payload is valid UTF-8
// and Binary otherwise. When a field name repeats the last part wins.
func ParseMultipart(contentType string, raw []byte) (*Object, error) {
	boundary, err := boundaryOf(contentType)
	if err != nil {
		return nil, err
	}
	p := &multipartParser{delimiter: []byte("--" + boundary)}
	return p.parse(raw)
}

func boundaryOf(contentType string) (string, error) {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if b := params["boundary"]; b != "" {
			return b, nil
		}
	}

	// mime rejects some parameters browsers and tools send; scan for it by hand
	for _, param := range strings.Split(contentType, ";") {
		key, value, ok := strings.Cut(param, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "boundary") {
			continue
		}
		if b := trimQuotes(strings.TrimSpace(value)); b != "" {
			return b, nil
		}
	}
	return "", ErrMissingBoundary
}

type multipartState int

const (
	seekingBoundary multipartState = iota
	readingHeaders
	readingBody
	finished
)

type lineKind int

const (
	dataLine lineKind = iota
	delimiterLine
	closeLine
)

type multipartParser struct {
	delimiter []byte
}

type mimePart struct {
	headers Headers
	body    []byte
}

func (p *multipartParser) parse(raw []byte) (*Object, error) {
	fields := NewObject()
	state := seekingBoundary
	var part *mimePart

	for rest := raw; len(rest) > 0 && state != finished; {
		var line []byte
		line, rest = nextLine(rest)
		content := trimEOL(line)

		switch state {
		case seekingBoundary:
			switch p.classify(content) {
			case delimiterLine:
				part = &mimePart{}
				state = readingHeaders
			case closeLine:
				state = finished
			}

		case readingHeaders:
			if len(content) == 0 {
				state = readingBody
				continue
			}
			if err := part.addHeaderLine(string(content)); err != nil {
				return nil, err
			}

		case readingBody:
			switch p.classify(content) {
			case delimiterLine:
				if err := addField(fields, part); err != nil {
					return nil, err
				}
				part = &mimePart{}
				state = readingHeaders
			case closeLine:
				if err := addField(fields, part); err != nil {
					return nil, err
				}
				state = finished
			default:
				part.body = append(part.body, line...)
			}
		}
	}

	switch state {
	case seekingBoundary:
		return nil, ErrBoundaryNotFound
	case readingHeaders, readingBody:
		return nil, ErrUnexpectedEnd
	}
	return fields, nil
}

// classify tells whether content is a delimiter line, the close delimiter or data.
// Transport padding after the boundary is ignored.
func (p *multipartParser) classify(content []byte) lineKind {
	if !bytes.HasPrefix(content, p.delimiter) {
		return dataLine
	}
	tail := content[len(p.delimiter):]
	if len(bytes.TrimRight(tail, " \t")) == 0 {
		return delimiterLine
	}
	if bytes.HasPrefix(tail, []byte("--")) && len(bytes.TrimRight(tail[2:], " \t")) == 0 {
		return closeLine
	}
	return dataLine
}

func (part *mimePart) addHeaderLine(line string) error {
	if line[0] == ' ' || line[0] == '\t' {
		if len(part.headers) == 0 {
			return fmt.Errorf("malformed part header %q", line)
		}
		last := &part.headers[len(part.headers)-1]
		last.Value += " " + strings.TrimSpace(line)
		return nil
	}

	name, value, ok := strings.Cut(line, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("malformed part header %q", line)
	}
	part.headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	return nil
}

// payload returns the part content with the line break owned by the next
// delimiter removed and any transfer encoding undone.
func (part *mimePart) payload() ([]byte, error) {
	body := part.body
	if bytes.HasSuffix(body, []byte("\r\n")) {
		body = body[:len(body)-2]
	} else if bytes.HasSuffix(body, []byte("\n")) {
		body = body[:len(body)-1]
	}

	switch strings.ToLower(strings.TrimSpace(part.headers.Get("Content-Transfer-Encoding"))) {
	case "base64":
		compact := bytes.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, body)
		out := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
		n, err := base64.StdEncoding.Decode(out, compact)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return out[:n], nil
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("invalid quoted-printable payload: %w", err)
		}
		return out, nil
	default:
		return body, nil
	}
}

func addField(fields *Object, part *mimePart) error {
	name, ok := fieldName(part.headers.Get("Content-Disposition"))
	if !ok {
		return nil
	}
	payload, err := part.payload()
	if err != nil {
		return err
	}
	if utf8.Valid(payload) {
		fields.Set(name, string(payload))
	} else {
		fields.Set(name, Binary(payload))
	}
	return nil
}

// fieldName extracts the name parameter of a form-data Content-Disposition
func fieldName(disposition string) (string, bool) {
	if !strings.Contains(strings.ToLower(disposition), "form-data") {
		return "", false
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name, ok := params["name"]; ok {
			return name, true
		}
	}
	for _, param := range strings.Split(disposition, ";") {
		key, value, ok := strings.Cut(param, "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "name") {
			return trimQuotes(strings.TrimSpace(value)), true
		}
	}
	return "", false
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// nextLine splits off the first line of b, terminator included
func nextLine(b []byte) (line, rest []byte) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i+1], b[i+1:]
	}
	return b, nil
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
