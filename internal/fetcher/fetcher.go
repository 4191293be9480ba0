// Package fetcher retrieves feed documents over HTTP(S) with the
// tolerances real-world feeds require: a strict-then-loose TLS cipher
// fallback, a hard byte cap, manual content decoding, KMZ container
// unwrapping and a secondary probe that distinguishes temporary from
// permanent redirects.
package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feedlint/feedlint/internal/diag"
)

// DefaultMaxBodyBytes caps feed documents at the same limit applied to
// locally supplied strings.
const DefaultMaxBodyBytes int64 = 5000000

const defaultUserAgent = "feedlint/1.0"

// Config controls fetch behavior. The timeout is explicit here rather
// than ambient process state so independent runs cannot interfere.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	ProbeTimeout   time.Duration
	MaxBodyBytes   int64
	ProbeRedirects bool
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = c.Timeout
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// Response is the outcome of a successful fetch, after content decoding
// and container unwrapping.
type Response struct {
	Body       []byte
	Header     http.Header
	StatusCode int

	// RequestURL is the URL the caller asked for; FinalURL is where the
	// transport actually landed after redirects.
	RequestURL string
	FinalURL   string

	// BaseURI resolves relative references in the document; SelfURIs are
	// the URIs the document may use to mean "this document".
	BaseURI  string
	SelfURIs []string
}

// Fetcher issues feed retrievals. Safe for concurrent use.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger

	strict *http.Client
	loose  *http.Client
	probe  *http.Client
}

// New builds a Fetcher. A nil logger is replaced with a nop logger.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		logger: logger,
		strict: newClient(strictTLSConfig(), cfg.Timeout, nil),
		loose:  newClient(looseTLSConfig(), cfg.Timeout, nil),
		probe: newClient(nil, cfg.ProbeTimeout, func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}),
	}
}

// Fetch retrieves rawURL and returns the decoded body plus response
// metadata. Protocol advisories are appended to log as they are
// observed; terminal failures come back as a *Failure that also carries
// the diagnostic already appended to log.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, log *diag.Log) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, f.fail(log, FailureTransport,
			diag.New(diag.KindIOError, diag.SeverityError, "message", err.Error()), err)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.strict.Do(req)
	if err != nil {
		if isSignatureError(err) {
			// Weak server signature: one downgrade to the permissive
			// cipher policy, with an advisory on record.
			log.Append(diag.New(diag.KindHTTPSProtocolWarning, diag.SeverityWarning,
				"message", "Weak signature used by HTTPS server"))
			f.logger.Debug("retrying with loose TLS policy", zap.String("url", rawURL))
			retry := req.Clone(ctx)
			resp, err = f.loose.Do(retry)
		}
		if err != nil {
			return nil, f.classifyTransportError(log, err)
		}
	}
	defer resp.Body.Close()

	// Status decides the run before any body byte counts against the cap.
	if resp.StatusCode >= 400 {
		return nil, f.fail(log, FailureHTTPStatus,
			diag.New(diag.KindHTTPError, diag.SeverityError,
				"status", strconv.Itoa(resp.StatusCode)),
			fmt.Errorf("http status %d", resp.StatusCode))
	}

	body, failure := f.readCapped(log, resp.Body)
	if failure != nil {
		return nil, failure
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	if f.cfg.ProbeRedirects && finalURL != rawURL {
		f.probeRedirect(ctx, rawURL, log)
	}

	if resp.Header.Get("Content-Encoding") == "" {
		log.Append(diag.Uncompressed())
	}
	body, failure = f.decodeContentEncoding(log, resp.Header.Get("Content-Encoding"), body)
	if failure != nil {
		return nil, failure
	}

	if resp.Header.Get("Content-Type") == "application/vnd.google-earth.kmz" {
		body, failure = f.unwrapKMZ(log, body)
		if failure != nil {
			return nil, failure
		}
	}

	checkHeaderNames(resp.Header, log)

	baseURI, selfURIs := resolveBase(rawURL, finalURL, resp.Header)

	return &Response{
		Body:       body,
		Header:     resp.Header,
		StatusCode: resp.StatusCode,
		RequestURL: rawURL,
		FinalURL:   finalURL,
		BaseURI:    baseURI,
		SelfURIs:   selfURIs,
	}, nil
}

// readCapped consumes at most MaxBodyBytes; one readable byte beyond the
// cap makes the fetch terminal.
func (f *Fetcher) readCapped(log *diag.Log, r io.Reader) ([]byte, *Failure) {
	body, err := io.ReadAll(io.LimitReader(r, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, f.fail(log, FailureTransport,
			diag.New(diag.KindIOError, diag.SeverityError, "message", err.Error()), err)
	}
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		limit := fmt.Sprintf("feed length > %d bytes", f.cfg.MaxBodyBytes)
		return nil, f.fail(log, FailureTooLarge, diag.ValidatorLimit(limit),
			fmt.Errorf("body exceeds %d bytes", f.cfg.MaxBodyBytes))
	}
	return body, nil
}

// probeRedirect re-requests the original path without following
// redirects to see whether the origin answers with a permanent 301.
// Anything else earns the temporary-redirect advisory. Best effort: a
// failing probe logs nothing.
func (f *Fetcher) probeRedirect(ctx context.Context, rawURL string, log *diag.Log) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "http" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	resp, err := f.probe.Do(req)
	if err != nil {
		f.logger.Debug("redirect probe failed", zap.String("url", rawURL), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusMovedPermanently {
		log.Append(diag.TempRedirect())
	}
}

func (f *Fetcher) decodeContentEncoding(log *diag.Log, encoding string, body []byte) ([]byte, *Failure) {
	switch encoding {
	case "", "identity":
		return body, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err == nil {
			var out []byte
			out, err = io.ReadAll(zr)
			if err == nil {
				return out, nil
			}
		}
		return nil, f.fail(log, FailureDecompress,
			diag.New(diag.KindIOError, diag.SeverityError,
				"message", "Server response declares Content-Encoding: gzip",
				"exception", err.Error()),
			fmt.Errorf("gzip decode: %w", err))
	case "deflate":
		out, err := io.ReadAll(flate.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, f.fail(log, FailureDecompress,
				diag.New(diag.KindIOError, diag.SeverityError,
					"message", "Server response declares Content-Encoding: deflate",
					"exception", err.Error()),
				fmt.Errorf("deflate decode: %w", err))
		}
		return out, nil
	default:
		return nil, f.fail(log, FailureDecompress,
			diag.New(diag.KindIOError, diag.SeverityError,
				"message", "Server response declares Content-Encoding: "+encoding),
			fmt.Errorf("unsupported content-encoding %q", encoding))
	}
}

// checkHeaderNames flags header names containing whitespace. Non-terminal.
func checkHeaderNames(h http.Header, log *diag.Log) {
	for name := range h {
		if strings.ContainsAny(name, " \t") {
			log.Append(diag.New(diag.KindHTTPProtocolError, diag.SeverityWarning,
				"header", name))
		}
	}
}

// resolveBase picks the effective base URI (Content-Location, then
// Location, then the final URL) and collects the self-URI set.
func resolveBase(requestURL, finalURL string, h http.Header) (string, []string) {
	selfURIs := []string{requestURL}
	appendSelf := func(uri string) {
		for _, existing := range selfURIs {
			if existing == uri {
				return
			}
		}
		selfURIs = append(selfURIs, uri)
	}
	appendSelf(finalURL)

	baseURI := finalURL
	ref := h.Get("Content-Location")
	if ref == "" {
		ref = h.Get("Location")
	}
	if ref != "" {
		if base, err := url.Parse(finalURL); err == nil {
			if refURL, err := url.Parse(ref); err == nil {
				baseURI = base.ResolveReference(refURL).String()
			}
		}
	}
	appendSelf(baseURI)
	return baseURI, selfURIs
}

func (f *Fetcher) classifyTransportError(log *diag.Log, err error) *Failure {
	switch {
	case isTimeout(err):
		return f.fail(log, FailureTimeout,
			diag.New(diag.KindTimeout, diag.SeverityError,
				"message", "Server timed out", "exception", err.Error()), err)
	case isCertificateError(err):
		return f.fail(log, FailureCertificate,
			diag.New(diag.KindHTTPSProtocolError, diag.SeverityError,
				"message", "HTTPS server has incorrect certificate configuration"), err)
	case isMalformedStatus(err):
		return f.fail(log, FailureBadStatus,
			diag.New(diag.KindHTTPError, diag.SeverityError,
				"status", err.Error()), err)
	default:
		return f.fail(log, FailureTransport,
			diag.New(diag.KindIOError, diag.SeverityError,
				"message", "transport error", "exception", err.Error()), err)
	}
}

func (f *Fetcher) fail(log *diag.Log, kind FailureKind, ev diag.Event, err error) *Failure {
	log.Append(ev)
	f.logger.Debug("fetch failed", zap.String("kind", string(kind)), zap.Error(err))
	return &Failure{Kind: kind, Event: ev, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isCertificateError(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	var invalidCert x509.CertificateInvalidError
	var hostname x509.HostnameError
	var verification *tls.CertificateVerificationError
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &hostname) ||
		errors.As(err, &verification)
}

// isSignatureError spots the one TLS failure the fetcher retries: the
// peer rejecting every signature scheme the strict policy offers.
func isSignatureError(err error) bool {
	if err == nil || isCertificateError(err) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "signature") ||
		strings.Contains(msg, "handshake failure")
}

func isMalformedStatus(err error) bool {
	return err != nil && strings.Contains(err.Error(), "malformed HTTP")
}

func newClient(tlsCfg *tls.Config, timeout time.Duration, redirect func(*http.Request, []*http.Request) error) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		// Manual gzip/deflate handling; the transport must not second-guess it.
		DisableCompression: true,
	}
	return &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: redirect,
	}
}

// strictTLSConfig mirrors an OpenSSL SECLEVEL=2 posture.
func strictTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		},
	}
}

// looseTLSConfig is the downgrade target: older protocol versions and
// the default cipher list, certificate verification still on.
func looseTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS10,
	}
}
