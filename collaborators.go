package httpcore

import (
	"crypto/tls"
	"time"
)

// Handler is set by the embedder and invoked once per engine cycle. It
// interacts with the cycle solely through the Engine's Request and Response
// fields and its Write method; the Engine exposes no cancellation signal to
// the handler. It must not retain the Engine beyond return (spec §9's
// "cyclic handler references" note).
type Handler interface {
	ServeHTTPCore(e *Engine)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(e *Engine)

// ServeHTTPCore calls f(e).
func (f HandlerFunc) ServeHTTPCore(e *Engine) { f(e) }

// ConnectionInfo describes the accepted socket a CertificateProvider is
// being asked to pick a certificate for.
type ConnectionInfo struct {
	LocalAddr  string
	RemoteAddr string
}

// CertificateProvider describes certificate selection by SNI, and
// ACME-TLS/1 challenge certificates, each given the accepted socket's
// ConnectionInfo. The tlsfront package does not call this interface:
// tlsfront.Accept takes tlsfront.CertificateProvider, whose methods receive
// only the server name.
type CertificateProvider interface {
	GetCertificate(info ConnectionInfo, serverName string) (*tls.Certificate, error)
	GetACMETLS1Certificate(info ConnectionInfo, serverName string) (*tls.Certificate, error)
}

// Logger is the narrow logging collaborator from spec §6.4. Failures
// logging are swallowed by the caller, never surfaced as a connection error.
type Logger interface {
	Log(err error, context string)
	Logf(format string, args ...any)
	LogRequest(t time.Time, line string)
}

// NopLogger discards everything; used as the zero-value default.
type NopLogger struct{}

func (NopLogger) Log(error, string)          {}
func (NopLogger) Logf(string, ...any)        {}
func (NopLogger) LogRequest(time.Time, string) {}
