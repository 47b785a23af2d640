// SPDX-License-Identifier: GPL-3.0-or-later

// Package httpwire implements the minimal HTTP/1.1 request/response
// framing subset spoken over a QUIC stream by this service: a single
// request line, a small set of headers separated by "\r\n", a blank line,
// and an optional body. It deliberately does not implement general HTTP --
// no header folding, no case-insensitive header lookup, no chunked
// transfer-encoding, no keep-alive.
package httpwire

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quicware/hoq-go/internal/digest"
)

const crlf = "\r\n"

// Method is one of the request methods this service understands.
type Method int

const (
	MethodUnknown Method = iota
	MethodGET
)

func (m Method) String() string {
	if m == MethodGET {
		return "GET"
	}
	return "UNKNOWN"
}

// defaultVersion is the only HTTP version this subset speaks.
const defaultVersion = "HTTP/1.1"

// Request is a full request: the request line plus headers and an
// optional body, built or parsed as a unit via Build/ParseRequest.
type Request struct {
	Method  Method
	URI     string
	Version string
	Headers []Header
	Body    []byte
}

// Build renders r as request-line + headers + blank line + body. A zero
// Version is rendered as HTTP/1.1.
func (r Request) Build() []byte {
	version := r.Version
	if version == "" {
		version = defaultVersion
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s%s", r.Method, r.URI, version, crlf)
	for _, h := range r.Headers {
		fmt.Fprintf(&b, "%s: %s%s", h.Name, h.Value, crlf)
	}
	b.WriteString(crlf)
	b.Write(r.Body)
	return []byte(b.String())
}

// ParseRequestLine parses "<METHOD> <URI> HTTP/1.1" from the head of buf.
// It tolerates the line arriving without a trailing CRLF (the caller may
// still be accumulating the rest of the request). ok is false unless the
// line holds a method token and a non-empty URI token, each followed by a
// space.
func ParseRequestLine(buf []byte) (req Request, ok bool) {
	line := string(buf)
	if idx := strings.IndexAny(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	}

	methodEnd := strings.IndexByte(line, ' ')
	if methodEnd < 0 {
		return Request{}, false
	}

	rest := line[methodEnd+1:]
	uriEnd := strings.IndexByte(rest, ' ')
	if uriEnd < 0 {
		return Request{}, false
	}
	uri := rest[:uriEnd]
	if uri == "" {
		return Request{}, false
	}
	version := strings.TrimSpace(rest[uriEnd+1:])

	method := MethodUnknown
	if line[:methodEnd] == "GET" {
		method = MethodGET
	}

	return Request{Method: method, URI: uri, Version: version}, true
}

// ParseRequest parses a full request -- request line, headers, and
// whatever body bytes follow the blank line -- out of buf. ok is false
// until buf contains the blank line terminating the headers.
func ParseRequest(buf []byte) (req Request, ok bool) {
	bodyStart, complete := HeadersComplete(buf)
	if !complete {
		return Request{}, false
	}

	head := string(buf[:bodyStart])
	lines := strings.SplitN(head, crlf, 2)
	line, ok := ParseRequestLine([]byte(lines[0]))
	if !ok {
		return Request{}, false
	}

	var headerBlock string
	if len(lines) == 2 {
		headerBlock = lines[1]
	}

	line.Headers = ParseHeaders([]byte(headerBlock))
	line.Body = buf[bodyStart:]
	return line, true
}

// HeadersComplete reports whether buf contains the blank line terminating
// the header section ("\r\n\r\n"), and the offset of the first body byte
// if so.
func HeadersComplete(buf []byte) (bodyStart int, ok bool) {
	idx := strings.Index(string(buf), crlf+crlf)
	if idx < 0 {
		return 0, false
	}
	return idx + len(crlf+crlf), true
}

// Response is a full response: the status line plus headers and an
// optional body, built or parsed as a unit via Build/ParseResponse.
type Response struct {
	StatusCode int
	StatusText string
	Headers    []Header
	Body       []byte
}

// Build renders r as status-line + headers + blank line + body.
func (r Response) Build() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d %s%s", defaultVersion, r.StatusCode, r.StatusText, crlf)
	for _, h := range r.Headers {
		fmt.Fprintf(&b, "%s: %s%s", h.Name, h.Value, crlf)
	}
	b.WriteString(crlf)
	b.Write(r.Body)
	return []byte(b.String())
}

// ParseResponse parses a full response -- status line, headers, and
// whatever body bytes follow the blank line -- out of buf. ok is false
// until buf contains the blank line terminating the headers.
func ParseResponse(buf []byte) (resp Response, ok bool) {
	bodyStart, complete := HeadersComplete(buf)
	if !complete {
		return Response{}, false
	}

	head := string(buf[:bodyStart])
	lines := strings.SplitN(head, crlf, 2)
	code, text, ok := ParseStatusLine(lines[0])
	if !ok {
		return Response{}, false
	}

	var headerBlock string
	if len(lines) == 2 {
		headerBlock = lines[1]
	}

	return Response{
		StatusCode: code,
		StatusText: text,
		Headers:    ParseHeaders([]byte(headerBlock)),
		Body:       buf[bodyStart:],
	}, true
}

// Header is a single request or response header. Headers are kept as an
// ordered slice and looked up by exact name via HeaderValue.
type Header struct {
	Name  string
	Value string
}

const (
	serverName = "HTTP-over-QUIC/1.0"
)

// NotFoundBody is the exact body sent with a 404 response.
const NotFoundBody = "File not found"

// BadRequestBody is the exact body sent with a 400 response.
const BadRequestBody = "Bad Request"

// BuildNotFound renders the fixed 404 response.
func BuildNotFound() []byte {
	return buildSimple(404, "Not Found", "text/plain", []byte(NotFoundBody))
}

// BuildBadRequest renders the fixed 400 response.
func BuildBadRequest() []byte {
	return buildSimple(400, "Bad Request", "text/plain", []byte(BadRequestBody))
}

func buildSimple(code int, text, contentType string, body []byte) []byte {
	return Response{
		StatusCode: code,
		StatusText: text,
		Headers: []Header{
			{Name: "Server", Value: serverName},
			{Name: "Content-Type", Value: contentType},
			{Name: "Content-Length", Value: strconv.Itoa(len(body))},
		},
		Body: body,
	}.Build()
}

// BuildFileHeaders renders the 200 OK header block (without the body) for
// an octet-stream file response, including the integrity header. The
// returned bytes end in the blank line "\r\n\r\n"; the body is sent
// separately by the caller's chunked sender.
func BuildFileHeaders(size int, sha256Hex string) []byte {
	return Response{
		StatusCode: 200,
		StatusText: "OK",
		Headers: []Header{
			{Name: "Server", Value: serverName},
			{Name: "Content-Type", Value: "application/octet-stream"},
			{Name: "Content-Length", Value: strconv.Itoa(size)},
			{Name: digest.Header, Value: sha256Hex},
		},
	}.Build()
}

// ParseHeaders splits a raw header block (everything before the blank
// line, without the trailing CRLFCRLF) into Header pairs. The status line
// itself is returned separately via ParseStatusLine.
func ParseHeaders(block []byte) []Header {
	var headers []Header
	lines := strings.Split(string(block), crlf)
	for _, line := range lines {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		name := line[:idx]
		value := strings.TrimPrefix(line[idx+1:], " ")
		headers = append(headers, Header{Name: name, Value: value})
	}
	return headers
}

// ParseStatusLine parses "HTTP/1.1 200 OK" into a status code and text.
func ParseStatusLine(line string) (code int, text string, ok bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, "", false
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", false
	}
	if len(parts) == 3 {
		text = parts[2]
	}
	return code, text, true
}

// HeaderValue looks up a header by exact (case-sensitive) name, matching
// this subset's no-normalization stance.
func HeaderValue(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// mimeTable maps lowercase file extensions to MIME types for MIMEType. The
// file server does not consult it: file bodies are always served as
// application/octet-stream (see BuildFileHeaders).
var mimeTable = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".txt":  "text/plain",
	".json": "application/json",
	".bin":  "application/octet-stream",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".css":  "text/css",
	".js":   "application/javascript",
}

// MIMEType returns the MIME type for a file extension, defaulting to
// application/octet-stream for unknown extensions.
func MIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := mimeTable[ext]; ok {
		return t
	}
	return "application/octet-stream"
}
