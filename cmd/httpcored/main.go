package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiroyk/httpcore"
	"github.com/shiroyk/httpcore/tlsfront"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type serveOptions struct {
	addr       string
	tlsAddr    string
	root       string
	configPath string
}

// NewRootCmd wires the httpcored demo binary: a plain-HTTP listener and an
// optional TLS-front-doored listener, both handed to the same static-file
// Handler, matching the one-binary/many-flags shape the retrieval pack's
// cobra-based CLIs use for their root command.
func NewRootCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "httpcored",
		Short: "Embeddable HTTP/1.1 engine demo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "plain HTTP listen address")
	cmd.Flags().StringVar(&opts.tlsAddr, "tls-addr", "", "hybrid plain/TLS listen address (empty disables it)")
	cmd.Flags().StringVar(&opts.root, "root", ".", "directory served as static files")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults applied if empty)")
	return cmd
}

func run(ctx context.Context, opts *serveOptions) error {
	cfg := httpcore.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := httpcore.LoadConfig(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	logger := newLogrusLogger()
	counters := httpcore.NewCounters(nil)
	handler := &staticFileHandler{root: opts.root, cfg: cfg}

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.addr, err)
	}
	go serveLoop(ctx, ln, cfg, counters, logger, handler, nil, false)

	if opts.tlsAddr != "" {
		tln, err := net.Listen("tcp", opts.tlsAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", opts.tlsAddr, err)
		}
		go serveLoop(ctx, tln, cfg, counters, logger, handler, newSelfSignedProvider(), true)
	}

	logger.Logf("httpcored listening plain=%s tls=%s root=%s", opts.addr, opts.tlsAddr, opts.root)
	<-ctx.Done()
	return nil
}

func serveLoop(ctx context.Context, ln net.Listener, cfg *httpcore.Config, counters *httpcore.Counters,
	logger httpcore.Logger, handler httpcore.Handler, certs tlsfront.CertificateProvider, hybrid bool) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Log(err, "accept")
			return
		}
		go handleConn(ctx, conn, cfg, counters, logger, handler, certs, hybrid)
	}
}

func handleConn(ctx context.Context, conn net.Conn, cfg *httpcore.Config, counters *httpcore.Counters,
	logger httpcore.Logger, handler httpcore.Handler, certs tlsfront.CertificateProvider, tlsCapable bool) {
	netConn := conn
	if tlsCapable {
		result, peekErr := acceptTLS(ctx, &netConn, certs)
		if peekErr != nil {
			logger.Log(peekErr, "tls-front-door")
			_ = conn.Close()
			return
		}
		if result != nil && result.IsACMEChallenge() {
			_ = netConn.Close()
			return
		}
	}

	e := httpcore.NewEngine(netConn, httpcore.EngineOptions{
		Config:   cfg,
		Counters: counters,
		Logger:   logger,
		Handler:  handler,
	})
	e.Run(ctx)
}

func acceptTLS(ctx context.Context, conn *net.Conn, certs tlsfront.CertificateProvider) (*tlsfront.PeekResult, error) {
	wrapped, result, err := tlsfront.Accept(ctx, *conn, tlsfront.Options{AllowPlain: true, Certs: certs})
	*conn = wrapped
	return result, err
}

// staticFileHandler serves opts.root as a directory tree through
// httpcore.ServeFile, the demo's one and only route.
type staticFileHandler struct {
	root string
	cfg  *httpcore.Config
}

func (h *staticFileHandler) ServeHTTPCore(e *httpcore.Engine) {
	req := e.Request
	resp := e.Response

	path := h.root + "/" + req.Page
	f, err := os.Open(path)
	if err != nil {
		resp.Simple("404 Not Found", "not found")
		return
	}
	defer f.Close()

	ifNoneMatch, _ := req.Headers.Get("If-None-Match")
	ifModifiedSince, _ := req.Headers.Get("If-Modified-Since")
	ifRange, _ := req.Headers.Get("If-Range")
	rangeHeader, _ := req.Headers.Get("Range")
	acceptEncoding, _ := req.Headers.Get("Accept-Encoding")

	body, err := httpcore.ServeFile(resp, f, httpcore.StaticFileRequest{
		Method:          req.Method,
		IfNoneMatch:     ifNoneMatch,
		IfModifiedSince: ifModifiedSince,
		IfRange:         ifRange,
		Range:           rangeHeader,
		AcceptEncoding:  acceptEncoding,
	}, httpcore.StaticFileOptions{
		Compressible:        h.cfg.CompressibleSet(),
		CacheableExtensions: nil,
	})
	if err != nil {
		resp.Simple("500 Internal Server Error", "error serving file")
		return
	}
	if body == nil {
		return
	}
	buf := make([]byte, 32*1024)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := e.Write(buf[:n]); werr != nil {
				return
			}
		}
		if rerr != nil {
			return
		}
	}
}

// selfSignedProvider is a placeholder certificate source for the demo
// binary. newSelfSignedProvider leaves it without a certificate, so
// GetCertificate returns an error for every server name and TLS handshakes
// on --tls-addr fail; ACME-TLS/1 always returns an error since this demo
// carries no ACME client. Embedders wire their own
// tlsfront.CertificateProvider in production.
type selfSignedProvider struct {
	cert *tls.Certificate
}

func newSelfSignedProvider() *selfSignedProvider {
	return &selfSignedProvider{}
}

func (p *selfSignedProvider) GetCertificate(serverName string) (*tls.Certificate, error) {
	if p.cert == nil {
		return nil, fmt.Errorf("httpcored: no certificate configured for %q", serverName)
	}
	return p.cert, nil
}

func (p *selfSignedProvider) GetACMETLS1Certificate(serverName string) (*tls.Certificate, error) {
	return nil, fmt.Errorf("httpcored: ACME-TLS/1 not configured for %q", serverName)
}
