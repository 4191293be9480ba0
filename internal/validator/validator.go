// Package validator wires the acquisition-and-dispatch pipeline together:
// fetch, content negotiation, decode, quirk normalization, XML dispatch
// and the conditional RDF fallback pass. One call is one run; runs share
// nothing mutable, so a single Validator serves concurrent callers.
package validator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/feedlint/feedlint/internal/clock/system"
	"github.com/feedlint/feedlint/internal/config"
	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/dispatch"
	"github.com/feedlint/feedlint/internal/feed"
	"github.com/feedlint/feedlint/internal/fetcher"
	"github.com/feedlint/feedlint/internal/id/uuid"
	"github.com/feedlint/feedlint/internal/logging"
	"github.com/feedlint/feedlint/internal/mediatype"
	"github.com/feedlint/feedlint/internal/metrics"
	"github.com/feedlint/feedlint/internal/quirk"
	"github.com/feedlint/feedlint/internal/rdfpass"
	"github.com/feedlint/feedlint/internal/rules"
	"github.com/feedlint/feedlint/internal/xmlenc"
)

// ErrInputTooLarge marks local input that exceeds the byte cap.
var ErrInputTooLarge = errors.New("input exceeds maximum feed length")

// Options control a single validation run.
type Options struct {
	FirstOccurrenceOnly bool
	GroupEvents         bool
	WantRawData         bool
	BaseURI             string
	FallbackEncoding    string
}

// Result is the outcome of one run. Events are always populated, even
// when the run failed terminally; FeedType stays Unknown for runs that
// never classified.
type Result struct {
	RunID    string       `json:"run_id"`
	FeedType feed.Type    `json:"feed_type"`
	Events   []diag.Event `json:"events"`
	RawData  string       `json:"raw_data,omitempty"`
}

// Validator owns the long-lived pieces of the pipeline.
type Validator struct {
	cfg        config.Config
	logger     *zap.Logger
	fetch      *fetcher.Fetcher
	dispatcher *dispatch.Dispatcher
	rdf        rdfpass.Engine
	ids        *uuid.Generator
	clock      *system.Clock
}

// New builds a Validator from configuration. A nil logger is replaced
// with a nop logger.
func New(cfg config.Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := dispatch.New(logger)
	rules.RegisterAll(d)

	var engine rdfpass.Engine = rdfpass.Noop{}
	if cfg.Validation.RDFPass {
		engine = rdfpass.XMLEngine{}
	}

	return &Validator{
		cfg:    cfg,
		logger: logger,
		fetch: fetcher.New(fetcher.Config{
			UserAgent:      cfg.Fetch.UserAgent,
			Timeout:        cfg.FetchTimeout(),
			ProbeTimeout:   cfg.ProbeTimeout(),
			MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
			ProbeRedirects: cfg.Fetch.ProbeRedirects,
		}, logger),
		dispatcher: d,
		rdf:        engine,
		ids:        uuid.New(),
		clock:      system.New(),
	}
}

// ValidateURL fetches url and validates the document it serves.
func (v *Validator) ValidateURL(ctx context.Context, url string, opts Options) (Result, error) {
	runID := v.newRunID()
	logger := logging.ForRun(v.logger, runID)
	log := diag.NewLog(opts.FirstOccurrenceOnly, opts.GroupEvents)

	start := v.clock.Now()
	resp, err := v.fetch.Fetch(ctx, url, log)
	if err != nil {
		v.finishRun(runID, "failed", feed.Unknown, log)
		return Result{RunID: runID, Events: log.Events()}, err
	}
	metrics.ObserveFetch(len(resp.Body), v.clock.Now().Sub(start))
	logger.Debug("fetched", zap.String("url", url), zap.Int("bytes", len(resp.Body)))

	var mediaType, charset string
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, charset = mediatype.CheckValid(ct, log)
	}

	mediatype.ContentSniffing(mediaType, resp.Body, log)

	_, text, ok := xmlenc.Decode(mediaType, charset, resp.Body, v.fallback(opts), log)
	if !ok {
		v.finishRun(runID, "undecodable", feed.Unknown, log)
		return Result{RunID: runID, Events: log.Events()}, nil
	}

	text = normalizeEOL(text)
	feedType := v.runParse(text, log, resp.BaseURI, resp.SelfURIs, mediaType)

	if mediaType != "" {
		mediatype.CheckAgainstFeedType(mediaType, feedType, log)
	}

	v.finishRun(runID, "ok", feedType, log)
	res := Result{RunID: runID, FeedType: feedType, Events: log.Events()}
	if opts.WantRawData {
		res.RawData = text
	}
	return res, nil
}

// ValidateStream validates a byte stream with a declared content type.
// The byte cap applies exactly as it does to network bodies.
func (v *Validator) ValidateStream(ctx context.Context, r io.Reader, contentType string, opts Options) (Result, error) {
	runID := v.newRunID()
	log := diag.NewLog(opts.FirstOccurrenceOnly, opts.GroupEvents)

	var mediaType, charset string
	if contentType != "" {
		mediaType, charset = mediatype.CheckValid(contentType, log)
	}

	data, err := v.readCapped(r)
	if err != nil {
		limit := fmt.Sprintf("feed length > %d bytes", v.cfg.Fetch.MaxBodyBytes)
		log.Append(diag.ValidatorLimit(limit))
		v.finishRun(runID, "failed", feed.Unknown, log)
		return Result{RunID: runID, Events: log.Events()}, err
	}

	return v.validateBytes(ctx, runID, data, mediaType, charset, opts, log)
}

// ValidateString validates in-memory bytes or text.
func (v *Validator) ValidateString(ctx context.Context, data []byte, opts Options) (Result, error) {
	runID := v.newRunID()
	log := diag.NewLog(opts.FirstOccurrenceOnly, opts.GroupEvents)

	if int64(len(data)) > v.cfg.Fetch.MaxBodyBytes {
		limit := fmt.Sprintf("feed length > %d bytes", v.cfg.Fetch.MaxBodyBytes)
		log.Append(diag.ValidatorLimit(limit))
		v.finishRun(runID, "failed", feed.Unknown, log)
		return Result{RunID: runID, Events: log.Events()}, ErrInputTooLarge
	}

	return v.validateBytes(ctx, runID, data, "", "", opts, log)
}

func (v *Validator) validateBytes(_ context.Context, runID string, data []byte, mediaType, charset string, opts Options, log *diag.Log) (Result, error) {
	_, text, ok := xmlenc.Decode(mediaType, charset, data, v.fallback(opts), log)
	if !ok {
		v.finishRun(runID, "undecodable", feed.Unknown, log)
		return Result{RunID: runID, Events: log.Events()}, nil
	}

	selfURIs := []string{}
	if opts.BaseURI != "" {
		selfURIs = append(selfURIs, opts.BaseURI)
	}
	feedType := v.runParse(normalizeEOL(text), log, opts.BaseURI, selfURIs, mediaType)

	if mediaType != "" {
		mediatype.CheckAgainstFeedType(mediaType, feedType, log)
	}

	v.finishRun(runID, "ok", feedType, log)
	res := Result{RunID: runID, FeedType: feedType, Events: log.Events()}
	if opts.WantRawData {
		res.RawData = text
	}
	return res, nil
}

// runParse owns the quirk-normalize / dispatch / RDF-fallback portion of
// a run and returns the classified feed type.
func (v *Validator) runParse(text string, log *diag.Log, baseURI string, selfURIs []string, mediaType string) feed.Type {
	text = quirk.Rearranged(text, log)
	quirk.CheckXMLVersion(text, log)

	ctx := &dispatch.Context{
		Log:          log,
		BaseURI:      baseURI,
		SelfURIs:     selfURIs,
		CharRefLines: quirk.CharRefLines(text),
	}

	result := v.dispatcher.Run(text, ctx, hintFromMediaType(mediaType))

	if result.FeedType == feed.RSS1 {
		v.runRDFPass(text, log)
	}
	return result.FeedType
}

// runRDFPass is best-effort enrichment: engine failures never surface.
func (v *Validator) runRDFPass(text string, log *diag.Log) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Debug("rdf fallback pass panicked", zap.Any("cause", r))
		}
	}()
	v.rdf.Check(text, log)
}

func (v *Validator) readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, v.cfg.Fetch.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return nil, ErrInputTooLarge
	}
	return data, nil
}

func (v *Validator) fallback(opts Options) string {
	if opts.FallbackEncoding != "" {
		return opts.FallbackEncoding
	}
	return v.cfg.Validation.FallbackEncoding
}

func (v *Validator) newRunID() string {
	id, err := v.ids.NewID()
	if err != nil {
		return "unknown"
	}
	return id
}

func (v *Validator) finishRun(runID, outcome string, t feed.Type, log *diag.Log) {
	metrics.ObserveRun(outcome, t.String())
	for _, ev := range log.Events() {
		metrics.ObserveEvent(string(ev.Severity))
	}
	v.logger.Debug("run finished",
		zap.String("run_id", runID),
		zap.String("outcome", outcome),
		zap.String("feed_type", t.String()),
		zap.Int("events", log.Len()))
}

func hintFromMediaType(mediaType string) feed.Type {
	switch mediaType {
	case mediatype.TypeAtomSvc:
		return feed.AppService
	case mediatype.TypeAtomCat:
		return feed.AppCategories
	}
	return feed.Unknown
}

func normalizeEOL(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
