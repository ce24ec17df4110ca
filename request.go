package httpcore

import (
	"bufio"
	"io"
	"net/url"
	"strconv"
	"strings"
)

const maxHeaderLineBytes = 32768
const maxFormBodyBytes = 2 * 1024 * 1024 // 2 MiB

// allowedMethods is the closed set of methods the request line may name;
// anything else is KindNotImplementedMethod.
var allowedMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "DELETE": true,
	"CONNECT": true, "OPTIONS": true, "TRACE": true, "PATCH": true,
}

// Request is built once per engine cycle by the parser and mutated only by
// the trust-proxy stage.
type Request struct {
	Method          string
	ProtocolVersion string
	URL             *url.URL
	Page            string // path without leading '/', percent-encoding preserved
	Headers         *HeaderCollection
	Query           map[string][]string
	PostForm        map[string][]string
	Cookies         map[string]string
	ConnectionTokens []string
	ContentLength   *int64
	Body            io.Reader // Substream, *ChunkedReader, or a buffer once form-decoded

	RemoteIP    string
	SecureHTTPS bool

	bodyDrained bool // true once Body has been fully consumed or discarded
}

// ParseOptions configures the request parser's behaviour for a connection.
type ParseOptions struct {
	BaseURL         *url.URL // used to resolve relative request targets
	HeaderPolicy    NormalizePolicy
	MaxFormBodyBytes int64
}

// ParseRequest reads one request-line + header section + (optionally)
// body framing off r, per spec §4.5.
func ParseRequest(r *bufio.Reader, opt ParseOptions) (*Request, error) {
	line, err := readLimitedLine(r)
	if err != nil {
		if err == io.EOF {
			return nil, errOrdinaryDisconnect(err)
		}
		return nil, err
	}
	if line == "" {
		return nil, errOrdinaryDisconnect(io.EOF)
	}

	method, target, version, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}
	if !allowedMethods[method] {
		return nil, errNotImplementedMethod(method)
	}

	headerPolicy := opt.HeaderPolicy
	headers := NewHeaderCollection(headerPolicy)
	for {
		hline, err := readLimitedLine(r)
		if err != nil {
			return nil, err
		}
		if hline == "" {
			break
		}
		if !strings.Contains(hline, ":") {
			return nil, errProtocolViolation(errMissingColon)
		}
		if err := headers.AssignFromLine(hline); err != nil {
			return nil, err
		}
	}
	if len(headers.GetAll("Host")) > 1 {
		return nil, errProtocolViolation(errTooManyHostHeaders)
	}

	target = strings.TrimSpace(target)
	reqURL, page, err := resolveTarget(target, opt.BaseURL)
	if err != nil {
		return nil, errProtocolViolation(err)
	}

	req := &Request{
		Method:          method,
		ProtocolVersion: version,
		URL:             reqURL,
		Page:            page,
		Headers:         headers,
		Cookies:         map[string]string{},
	}

	if cookieHeader, ok := headers.Get("Cookie"); ok {
		req.Cookies = ParseCookieHeader(cookieHeader)
	}
	if conn, ok := headers.Get("Connection"); ok {
		req.ConnectionTokens = splitTrimmed(conn, ",")
	}
	req.Query = parseQueryMulti(reqURL.RawQuery)

	if err := frameBody(req, headers, r); err != nil {
		return nil, err
	}

	maxForm := opt.MaxFormBodyBytes
	if maxForm <= 0 {
		maxForm = maxFormBodyBytes
	}
	if err := maybeDecodeForm(req, headers, maxForm); err != nil {
		return nil, err
	}

	return req, nil
}

// parseRequestLine splits "METHOD TARGET VERSION" into its three tokens.
func parseRequestLine(line string) (method, target, version string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", errProtocolViolation(errMalformedRequestLine)
	}
	if !strings.HasPrefix(parts[2], "HTTP/") {
		return "", "", "", errProtocolViolation(errUnsupportedVersion)
	}
	return parts[0], parts[1], parts[2], nil
}

// resolveTarget parses target as absolute if it carries a recognized
// scheme, otherwise resolves it against base.
func resolveTarget(target string, base *url.URL) (*url.URL, string, error) {
	var u *url.URL
	var err error
	switch {
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"),
		strings.HasPrefix(target, "ws://"), strings.HasPrefix(target, "wss://"):
		u, err = url.Parse(target)
	default:
		rel, perr := url.Parse(target)
		if perr != nil {
			return nil, "", perr
		}
		if base != nil {
			u = base.ResolveReference(rel)
		} else {
			u = rel
		}
	}
	if err != nil {
		return nil, "", err
	}
	page := strings.TrimPrefix(u.EscapedPath(), "/")
	return u, page, nil
}

// frameBody decides the body-framing strategy per spec §4.5 and attaches
// the corresponding reader (Substream or ChunkedReader) over r, the same
// buffered reader the headers were just parsed from.
func frameBody(req *Request, headers *HeaderCollection, r *bufio.Reader) error {
	if req.Method == "TRACE" {
		req.bodyDrained = true
		return nil
	}

	if cl, ok := headers.Get("Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			return errProtocolViolation(err)
		}
		req.ContentLength = &n
		if n == 0 {
			req.bodyDrained = true
			return nil
		}
		req.Body = NewSubstreamReader(r, n)
		return nil
	}

	if te, ok := headers.Get("Transfer-Encoding"); ok {
		tokens := splitTrimmed(te, ",")
		if len(tokens) != 1 || !strings.EqualFold(tokens[0], "chunked") {
			return errProtocolViolation(errMultipleTransferEnc)
		}
		req.Body = NewChunkedReader(r)
		return nil
	}

	switch req.Method {
	case "POST", "PUT", "PATCH":
		return errLengthRequired()
	default:
		req.bodyDrained = true
		return nil
	}
}

// maybeDecodeForm eagerly decodes application/x-www-form-urlencoded bodies
// up to maxBytes, replacing req.Body with a re-readable buffer.
func maybeDecodeForm(req *Request, headers *HeaderCollection, maxBytes int64) error {
	ct, _ := headers.Get("Content-Type")
	if !strings.Contains(strings.ToLower(ct), "application/x-www-form-urlencoded") {
		return nil
	}
	if req.Body == nil {
		return nil
	}
	limited := io.LimitReader(req.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return errProtocolViolation(err)
	}
	if int64(len(data)) > maxBytes {
		return errRequestTooLarge(nil)
	}
	req.PostForm = parseFormMulti(string(data))
	req.Body = strings.NewReader(string(data))
	req.bodyDrained = false
	return nil
}

func parseQueryMulti(raw string) map[string][]string {
	values, _ := url.ParseQuery(raw)
	out := make(map[string][]string, len(values))
	for k, v := range values {
		out[strings.ToLower(k)] = v
	}
	return out
}

func parseFormMulti(body string) map[string][]string {
	values, _ := url.ParseQuery(body)
	out := make(map[string][]string, len(values))
	for k, v := range values {
		out[strings.ToLower(k)] = []string{strings.Join(v, ",")}
	}
	return out
}

func splitTrimmed(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readLimitedLine reads one CRLF- or LF-terminated line capped at
// maxHeaderLineBytes, returning the line without its terminator.
func readLimitedLine(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		chunk, err := r.ReadSlice('\n')
		b.Write(chunk)
		if b.Len() > maxHeaderLineBytes {
			return "", errRequestTooLarge(nil)
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return "", err
	}
	return strings.TrimRight(b.String(), "\r\n"), nil
}

// fullyRead reports whether Body is a Substream/ChunkedReader that has
// already reached its end, or a plain in-memory buffer (the post-form
// decode path) which is always considered drained.
func (req *Request) fullyRead() bool {
	if req.bodyDrained {
		return true
	}
	switch b := req.Body.(type) {
	case *Substream:
		return b.EndOfStream()
	case *ChunkedReader:
		return b.EndOfStream()
	case *strings.Reader:
		// the post-form decode path: an in-memory buffer, always fine to
		// drop per spec regardless of how much of it was read.
		return true
	case nil:
		return true
	default:
		return false
	}
}

// Drain implements the draining policy from spec §4.10: if Body is
// already fully read, it is simply dropped. Otherwise it discards up to
// budget bytes; reaching EOF within budget is a quiet success, otherwise
// it returns errBodyNotDrained (fatal to the connection).
func (req *Request) Drain(budget int64) error {
	if req.fullyRead() || req.Body == nil {
		return nil
	}
	n, err := io.CopyN(io.Discard, req.Body, budget+1)
	if err != nil && err != io.EOF {
		return errProtocolViolation(err)
	}
	if n > budget {
		return errBodyNotDrained()
	}
	return nil
}
