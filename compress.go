package httpcore

import (
	"compress/gzip"
	"compress/zlib"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

// Algorithm is a response compression method recognized by the codec.
type Algorithm string

const (
	AlgorithmNone    Algorithm = ""
	AlgorithmGzip    Algorithm = "gzip"
	AlgorithmDeflate Algorithm = "deflate"
	AlgorithmBrotli  Algorithm = "br"
)

// serverPreference breaks weight ties the way spec §4.4 requires: br,
// then gzip, then deflate.
var serverPreference = map[Algorithm]int{
	AlgorithmBrotli:  0,
	AlgorithmGzip:    1,
	AlgorithmDeflate: 2,
}

// acceptEntry is one parsed "name[;q=weight]" piece of an Accept-Encoding header.
type acceptEntry struct {
	name   Algorithm
	weight float64
}

// parseAcceptEncoding parses the full header value into weighted entries,
// clamping weight to [0,1] and defaulting to 1 when absent.
func parseAcceptEncoding(header string) []acceptEntry {
	var out []acceptEntry
	for _, piece := range strings.Split(header, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		name, rest, hasParam := strings.Cut(piece, ";")
		name = strings.ToLower(strings.TrimSpace(name))
		weight := 1.0
		if hasParam {
			for _, p := range strings.Split(rest, ";") {
				p = strings.TrimSpace(p)
				if k, v, ok := strings.Cut(p, "="); ok && strings.TrimSpace(k) == "q" {
					if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
						weight = parsed
					}
				}
			}
		}
		if weight < 0 {
			weight = 0
		}
		if weight > 1 {
			weight = 1
		}
		out = append(out, acceptEntry{name: Algorithm(name), weight: weight})
	}
	return out
}

// SelectAlgorithm picks the client's highest-weight algorithm among those
// the server supports, breaking ties by server preference order.
func SelectAlgorithm(acceptEncoding string, supported ...Algorithm) Algorithm {
	supportedSet := make(map[Algorithm]bool, len(supported))
	for _, a := range supported {
		supportedSet[a] = true
	}

	entries := parseAcceptEncoding(acceptEncoding)
	var candidates []acceptEntry
	for _, e := range entries {
		if e.weight <= 0 {
			continue
		}
		if supportedSet[e.name] {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return AlgorithmNone
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].weight != candidates[j].weight {
			return candidates[i].weight > candidates[j].weight
		}
		return serverPreference[candidates[i].name] < serverPreference[candidates[j].name]
	})
	return candidates[0].name
}

// DefaultCompressibleExtensions is the default compressible-extension set
// from spec §4.4, extensible by the embedder via Config.
var DefaultCompressibleExtensions = map[string]bool{
	".html": true, ".htm": true, ".js": true, ".css": true,
	".txt": true, ".svg": true, ".xml": true,
}

// CompressionThresholdBytes is the minimum payload size before compression
// activates.
const CompressionThresholdBytes = 200

// ShouldCompress reports whether a response of size bytes for ext should be
// compressed, given the negotiated algorithm and the compressible set.
func ShouldCompress(algo Algorithm, ext string, size int64, compressible map[string]bool) bool {
	if algo == AlgorithmNone {
		return false
	}
	if size <= CompressionThresholdBytes {
		return false
	}
	if compressible == nil {
		compressible = DefaultCompressibleExtensions
	}
	return compressible[strings.ToLower(ext)]
}

// compressWriter wraps w with a streaming encoder for algo. Closing it
// flushes/finalizes the codec but never closes w itself.
type compressWriter struct {
	io.Writer
	closer io.Closer
}

func (c *compressWriter) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// NewCompressWriter returns a writer that compresses into w using algo.
func NewCompressWriter(w io.Writer, algo Algorithm) (io.WriteCloser, error) {
	switch algo {
	case AlgorithmGzip:
		gz := gzip.NewWriter(w)
		return &compressWriter{Writer: gz, closer: gz}, nil
	case AlgorithmDeflate:
		zw := zlib.NewWriter(w)
		return &compressWriter{Writer: zw, closer: zw}, nil
	case AlgorithmBrotli:
		br := brotli.NewWriter(w)
		return &compressWriter{Writer: br, closer: br}, nil
	default:
		return &compressWriter{Writer: w}, nil
	}
}

// DecodeReader decodes a Content-Encoding chain (gzip, deflate, br), listed
// in the order it was applied, by undoing the last-listed encoding first. Grounded
// on the same decoding table used client-side for response bodies; here it
// is reused so tests can round-trip what the codec wrote.
func DecodeReader(encoding string, r io.Reader) (io.Reader, error) {
	out := r
	var err error
	encodings := strings.Split(encoding, ",")
	for i := len(encodings) - 1; i >= 0; i-- {
		switch strings.TrimSpace(strings.ToLower(encodings[i])) {
		case "deflate":
			out, err = zlib.NewReader(out)
		case "gzip":
			out, err = gzip.NewReader(out)
		case "br":
			out = brotli.NewReader(out)
		case "":
			// no-op
		default:
			return nil, errProtocolViolation(nil)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
