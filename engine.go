package httpcore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"
)

// State names one step of the per-connection state machine from spec §4.10.
// TLS negotiation (Accepted/TlsPeek/TlsAcme/TlsHandshake) happens in the
// tlsfront subpackage before an Engine is ever constructed; Engine itself
// begins at StateReading.
type State int

const (
	StateReading State = iota
	StateDispatched
	StateWriting
	StateDraining
	StateErroring
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "Reading"
	case StateDispatched:
		return "Dispatched"
	case StateWriting:
		return "Writing"
	case StateDraining:
		return "Draining"
	case StateErroring:
		return "Erroring"
	default:
		return "Done"
	}
}

// DefaultKeepAliveCandidateSeconds is the N in spec §4.6's keep-alive
// formula before any close/high-load override is applied.
const DefaultKeepAliveCandidateSeconds = 5

// Engine drives one accepted connection through zero or more request/
// response cycles. It is single-tenanted: only the goroutine running Run
// touches its Request/Response/stream state, satisfying spec §5's "no two
// tasks mutate the same Request, Response, or stream state concurrently".
type Engine struct {
	id       int64
	conn     net.Conn
	br       *bufio.Reader
	bw       *bufio.Writer
	cfg      *Config
	counters *Counters
	logger   Logger
	handler  Handler
	debug    *slog.Logger

	baseURL            *url.URL
	trustedProxy       func(remoteIP string) bool
	keepAliveCandidate int
	highLoad           func() bool

	state State

	Request  *Request
	Response *Response

	bodyWriter io.Writer
}

// EngineOptions configures a new Engine.
type EngineOptions struct {
	Config       *Config
	Counters     *Counters
	Logger       Logger
	Handler      Handler
	BaseURL      *url.URL
	TrustedProxy func(remoteIP string) bool
	HighLoad     func() bool
	// DebugLog receives per-cycle diagnostic detail (state transitions,
	// drain outcome) at slog.LevelDebug; defaults to slog.Default(). This
	// is separate from Logger, which is the narrow embedder-facing sink
	// for requests and failures (spec §6.4).
	DebugLog *slog.Logger
}

// NewEngine wraps conn and returns an Engine ready for Run.
func NewEngine(conn net.Conn, opt EngineOptions) *Engine {
	cfg := opt.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := opt.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	debug := opt.DebugLog
	if debug == nil {
		debug = slog.Default()
	}
	e := &Engine{
		conn:               conn,
		br:                 bufio.NewReader(conn),
		bw:                 bufio.NewWriter(conn),
		cfg:                cfg,
		counters:           opt.Counters,
		logger:             logger,
		debug:              debug,
		handler:            opt.Handler,
		baseURL:            opt.BaseURL,
		trustedProxy:       opt.TrustedProxy,
		keepAliveCandidate: DefaultKeepAliveCandidateSeconds,
		highLoad:           opt.HighLoad,
		state:              StateReading,
	}
	if e.counters != nil {
		e.id = e.counters.register(e)
	}
	return e
}

// ConnectionID returns the monotonic id this engine was registered under.
func (e *Engine) ConnectionID() int64 { return e.id }

// State returns the engine's current state-machine step.
func (e *Engine) State() State { return e.state }

// Write streams body bytes to the client, lazily emitting the response
// header (with no keep-alive override other than the engine's normal
// computation) on the first call, mirroring the chunk-writer's
// write-triggers-header pattern the teacher uses for lazily flushed
// responses.
func (e *Engine) Write(p []byte) (int, error) {
	if e.bodyWriter == nil {
		isHead := e.Request != nil && e.Request.Method == "HEAD"
		keepAlive := e.computeKeepAlive()
		w, err := e.Response.WriteHeader(e.bw, isHead, keepAlive)
		if err != nil {
			return 0, err
		}
		e.bodyWriter = w
	}
	return e.bodyWriter.Write(p)
}

func (e *Engine) computeKeepAlive() int {
	protocolVersion := ""
	var tokens []string
	if e.Request != nil {
		protocolVersion = e.Request.ProtocolVersion
		tokens = e.Request.ConnectionTokens
	}
	hl := false
	if e.highLoad != nil {
		hl = e.highLoad()
	} else if e.counters != nil {
		hl = e.counters.IsHighLoad(e.cfg.MaxConnections, 0, e.cfg.QueueDepthThreshold)
	}
	return computeKeepAliveSeconds(protocolVersion, tokens, e.keepAliveCandidate, e.Response.PreventKeepalive, hl)
}

// Run drives the connection until it closes, per spec §4.10.
func (e *Engine) Run(ctx context.Context) {
	defer e.finish()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e.state = StateReading
		e.debug.Debug("engine state", "conn", e.id, "state", e.state.String())
		if e.cfg.IdleReadTimeout > 0 {
			_ = e.conn.SetReadDeadline(time.Now().Add(e.cfg.IdleReadTimeout))
		}

		req, err := ParseRequest(e.br, ParseOptions{
			BaseURL:          e.baseURL,
			HeaderPolicy:     TitleCase,
			MaxFormBodyBytes: e.cfg.MaxFormBodyBytes,
		})
		if err != nil {
			cerr := classify(err)
			if cerr.Kind == KindOrdinaryDisconnect {
				return
			}
			e.state = StateErroring
			e.writeErrorResponse(cerr)
			return
		}

		req.RemoteIP = remoteIPOf(e.conn)
		e.applyTrustProxy(req)
		e.Request = req
		e.Response = NewResponse()
		e.bodyWriter = nil

		e.state = StateDispatched
		e.debug.Debug("engine state", "conn", e.id, "state", e.state.String())
		if !e.dispatch() {
			return
		}

		e.state = StateWriting
		e.debug.Debug("engine state", "conn", e.id, "state", e.state.String())
		if !e.finalizeResponse() {
			return
		}

		if e.counters != nil {
			e.counters.requestServed()
		}

		e.state = StateDraining
		e.debug.Debug("engine state", "conn", e.id, "state", e.state.String())
		if err := req.Drain(e.cfg.DrainBudgetBytes); err != nil {
			e.debug.Debug("drain outcome", "conn", e.id, "ok", false, "err", err)
			e.logger.Log(err, "drain")
			return
		}
		e.debug.Debug("drain outcome", "conn", e.id, "ok", true)

		if e.Response.keepAliveSecond <= 0 {
			return
		}
	}
}

// dispatch runs the handler, converting a panic into KindInternal exactly
// as the single catch-all in spec §7 requires.
func (e *Engine) dispatch() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			cerr := errInternal(fmt.Errorf("panic: %v", r))
			e.state = StateErroring
			e.writeErrorResponse(cerr)
			ok = false
		}
	}()
	if e.handler != nil {
		e.handler.ServeHTTPCore(e)
	}
	return true
}

// finalizeResponse flushes whatever the handler configured: a buffered
// body if the header was never written, or just Finish if the handler
// streamed through Write already.
func (e *Engine) finalizeResponse() bool {
	if !e.Response.headerWritten {
		isHead := e.Request.Method == "HEAD"
		if err := e.Response.SendBuffered(e.bw, isHead, e.computeKeepAlive()); err != nil {
			e.logger.Log(err, "send-buffered")
			return false
		}
		return true
	}
	if e.Response.upgrade {
		// The raw stream is handed back to the caller; no body framing to finish.
		_ = e.bw.Flush()
		return false // upgraded connections are not restarted into keep-alive
	}
	if err := e.Response.Finish(); err != nil {
		e.logger.Log(err, "finish")
		return false
	}
	return true
}

// writeErrorResponse writes a best-effort error response provided the
// header has not already been emitted (spec §7).
func (e *Engine) writeErrorResponse(cerr *Error) {
	if cerr.Status == "" {
		return
	}
	if e.Response != nil && e.Response.headerWritten {
		return
	}
	resp := NewResponse()
	resp.Simple(cerr.Status, cerr.Description)
	_ = resp.SendBuffered(e.bw, false, 0)
}

// applyTrustProxy implements the trust-proxy stage from spec §4.10: only
// when the peer is a trusted proxy do X-Real-IP / X-Forwarded-For /
// X-Forwarded-Proto get to rewrite remote IP, secure flag, and base URI.
func (e *Engine) applyTrustProxy(req *Request) {
	if e.trustedProxy == nil || !e.trustedProxy(req.RemoteIP) {
		return
	}
	if e.cfg.TrustXRealIP {
		if v, ok := req.Headers.Get("X-Real-IP"); ok {
			if ip := firstValidIP(strings.Split(v, ",")); ip != "" {
				req.RemoteIP = ip
			}
		}
	}
	if e.cfg.TrustXForwardedFor {
		if v, ok := req.Headers.Get("X-Forwarded-For"); ok {
			if ip := firstValidIP(strings.Split(v, ",")); ip != "" {
				req.RemoteIP = ip
			}
		}
	}
	if e.cfg.TrustXForwardedProto {
		if v, ok := req.Headers.Get("X-Forwarded-Proto"); ok {
			req.SecureHTTPS = strings.EqualFold(strings.TrimSpace(v), "https")
			if e.baseURL != nil {
				scheme := "http"
				if req.SecureHTTPS {
					scheme = "https"
				}
				updated := *e.baseURL
				updated.Scheme = scheme
				e.baseURL = &updated
			}
		}
	}
}

// firstValidIP returns the first syntactically valid IP among candidates
// (read left to right), skipping malformed tokens rather than failing the
// whole header — the BPUtil-derived behavior documented in SPEC_FULL.md.
func firstValidIP(candidates []string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if host, _, err := net.SplitHostPort(c); err == nil {
			c = host
		}
		if net.ParseIP(c) != nil {
			return c
		}
	}
	return ""
}

func remoteIPOf(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func (e *Engine) finish() {
	e.state = StateDone
	_ = e.conn.Close()
	if e.counters != nil {
		e.counters.unregister(e.id)
	}
}

// isDisconnectLike reports whether err represents a quiet expected
// disconnect: EOF, a timed-out/closed net.Error, or context cancellation.
func isDisconnectLike(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
