// Package tlsfront implements the pre-handshake SNI/ALPN front door from
// spec §4.11: on a binding that accepts both plain HTTP and TLS, peek the
// first byte to decide which one a new connection is, then — for TLS —
// drive the real handshake through a GetConfigForClient hook that routes
// ACME-TLS/1 validation separately from ordinary certificate selection.
package tlsfront

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
)

// ErrNotTLS is returned by Accept when a TLS-only binding receives a
// connection whose first byte is not a TLS handshake record (0x16).
var ErrNotTLS = errors.New("tlsfront: first byte is not a TLS handshake record")

const tlsHandshakeRecordType = 0x16

// acmeTLS1 is the ALPN token RFC 8737 reserves for ACME-TLS/1 validation.
const acmeTLS1 = "acme-tls/1"

// PeekResult is what the front door learned from the ClientHello.
type PeekResult struct {
	IsTLS      bool
	ServerName string
	ALPN       []string
	IsACME     bool
}

// CertificateProvider selects a certificate by SNI, and separately by
// ACME-TLS/1 challenge. It has the same two methods as
// httpcore.CertificateProvider minus the ConnectionInfo argument, and is
// declared here so tlsfront does not import the root package and can be
// used standalone.
type CertificateProvider interface {
	GetCertificate(serverName string) (*tls.Certificate, error)
	GetACMETLS1Certificate(serverName string) (*tls.Certificate, error)
}

// Options configures Accept.
type Options struct {
	// AllowPlain permits a non-TLS first byte to fall through as a plain
	// connection instead of erroring; set for hybrid bindings.
	AllowPlain bool
	Certs      CertificateProvider
}

// peekConn replays the single byte consumed by the first-byte peek to
// whatever reads the connection next — the plain-HTTP path, or the real
// TLS handshake that follows.
type peekConn struct {
	net.Conn
	first    byte
	consumed bool
}

func (c *peekConn) Read(p []byte) (int, error) {
	if !c.consumed && len(p) > 0 {
		c.consumed = true
		p[0] = c.first
		if len(p) == 1 {
			return 1, nil
		}
		n, err := c.Conn.Read(p[1:])
		return n + 1, err
	}
	return c.Conn.Read(p)
}

// Accept reads conn's first byte to classify it, then either returns it
// unmodified as a plain connection (hybrid binding, non-TLS byte) or drives
// a real TLS 1.2+ server handshake that resolves SNI/ALPN through Certs,
// returning the negotiated *tls.Conn in its place. The returned PeekResult
// is populated from the live ClientHello once Accept returns.
func Accept(ctx context.Context, conn net.Conn, opt Options) (net.Conn, *PeekResult, error) {
	var head [1]byte
	if _, err := conn.Read(head[:]); err != nil {
		return conn, nil, err
	}
	wrapped := &peekConn{Conn: conn, first: head[0]}

	if head[0] != tlsHandshakeRecordType {
		if opt.AllowPlain {
			return wrapped, &PeekResult{IsTLS: false}, nil
		}
		return wrapped, nil, ErrNotTLS
	}

	result := &PeekResult{IsTLS: true}
	base := &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetConfigForClient: func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
			result.ServerName = hello.ServerName
			result.ALPN = append([]string(nil), hello.SupportedProtos...)
			for _, p := range result.ALPN {
				if p == acmeTLS1 {
					result.IsACME = true
				}
			}
			return configForHello(hello, result, opt.Certs)
		},
	}

	tlsConn := tls.Server(wrapped, base)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return tlsConn, result, err
	}
	return tlsConn, result, nil
}

// configForHello builds the per-connection tls.Config once SNI/ALPN is
// known: an ACME-TLS/1 ALPN routes to the challenge certificate and
// restricts NextProtos to acme-tls/1 alone (spec §4.11's "advertising only
// that ALPN"); otherwise the provider's ordinary certificate is used.
func configForHello(hello *tls.ClientHelloInfo, result *PeekResult, certs CertificateProvider) (*tls.Config, error) {
	if certs == nil {
		return nil, fmt.Errorf("tlsfront: no certificate provider configured")
	}
	if result.IsACME {
		cert, err := certs.GetACMETLS1Certificate(hello.ServerName)
		if err != nil {
			return nil, err
		}
		if cert == nil {
			// spec §4.11: a null ACME-TLS/1 certificate means drop the
			// connection rather than complete the handshake.
			return nil, fmt.Errorf("tlsfront: no acme-tls/1 certificate for %q", hello.ServerName)
		}
		return &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{*cert},
			NextProtos:   []string{acmeTLS1},
		}, nil
	}
	cert, err := certs.GetCertificate(hello.ServerName)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, fmt.Errorf("tlsfront: no certificate for %q", hello.ServerName)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{*cert},
	}, nil
}

// IsACMEChallenge reports whether result describes a connection that
// should be closed immediately after its handshake rather than handed to
// an Engine — ACME-TLS/1 validation carries no HTTP session.
func (r *PeekResult) IsACMEChallenge() bool { return r.IsTLS && r.IsACME }

// NegotiatedProtocol reports the ALPN value the handshake settled on, for
// callers that want to branch on it beyond the acme-tls/1 special case.
func NegotiatedProtocol(conn net.Conn) string {
	tc, ok := conn.(*tls.Conn)
	if !ok {
		return ""
	}
	return tc.ConnectionState().NegotiatedProtocol
}

