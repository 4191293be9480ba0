// Package dispatch drives the namespace-aware XML event loop at the
// heart of a validation run: it classifies the feed from the root
// element, routes events to the matching format handler and converts
// parser failures into positioned diagnostics instead of propagating
// them.
package dispatch

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/feed"
)

// State is the terminal condition of a parse.
type State string

// Both terminal states yield a usable result; Aborted just means the
// decoder gave up partway with whatever was logged preserved.
const (
	StateDone    State = "done"
	StateAborted State = "aborted"
)

// Handler receives the XML events for one feed format. Implementations
// append diagnostics through the context and return nothing; handler
// instances live for exactly one run.
type Handler interface {
	StartElement(ctx *Context, el xml.StartElement)
	CharData(ctx *Context, text xml.CharData)
	EndElement(ctx *Context, el xml.EndElement)
	EndDocument(ctx *Context)
}

// HandlerFactory builds a fresh per-run Handler.
type HandlerFactory func() Handler

// Context is the per-run state shared with format handlers.
type Context struct {
	Log      *diag.Log
	BaseURI  string
	SelfURIs []string
	FeedType feed.Type

	// CharRefLines flags, per source line, the presence of a numeric
	// character reference. Used by format-specific character-data rules.
	CharRefLines []bool

	pos diag.Position
}

// Pos is the position of the event currently being dispatched.
func (c *Context) Pos() diag.Position {
	return c.pos
}

// LogAt appends ev positioned at the current event.
func (c *Context) LogAt(ev diag.Event) {
	c.Log.Append(ev.At(c.pos.Line, c.pos.Column))
}

// Result summarizes one dispatch run.
type Result struct {
	FeedType feed.Type
	State    State
}

// Dispatcher owns the handler registry and the event loop. It holds no
// per-run state; Run may be called concurrently.
type Dispatcher struct {
	factories map[feed.Type]HandlerFactory
	logger    *zap.Logger
}

// New builds an empty dispatcher. Formats without a registered handler
// still classify; their events simply go nowhere.
func New(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		factories: make(map[feed.Type]HandlerFactory),
		logger:    logger,
	}
}

// Register installs the handler factory for a feed type.
func (d *Dispatcher) Register(t feed.Type, f HandlerFactory) {
	d.factories[t] = f
}

// Run parses text and dispatches events. hint pre-classifies Atom
// Publishing Protocol documents from their media type; it wins over the
// root-element table. The feed type is set exactly once per run.
func (d *Dispatcher) Run(text string, ctx *Context, hint feed.Type) Result {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = true
	// Tolerate the HTML entity zoo; external DTDs are never fetched, so
	// documents referencing one cannot block or fail on resolution.
	dec.Entity = xml.HTMLEntity

	lines := newLineIndex(text)

	classified := false
	if hint == feed.AppService || hint == feed.AppCategories {
		ctx.FeedType = hint
		classified = true
	}

	var handler Handler
	if classified {
		handler = d.newHandler(ctx.FeedType)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if handler != nil {
				handler.EndDocument(ctx)
			}
			return Result{FeedType: d.finalType(ctx, classified), State: StateDone}
		}
		if err != nil {
			ctx.pos = lines.position(dec.InputOffset(), err)
			ctx.LogAt(diag.XMLParseError(err.Error()))
			d.logger.Debug("parse aborted",
				zap.Int("line", ctx.pos.Line), zap.Error(err))
			return Result{FeedType: d.finalType(ctx, classified), State: StateAborted}
		}

		ctx.pos = lines.position(dec.InputOffset(), nil)

		switch t := tok.(type) {
		case xml.StartElement:
			if !classified {
				ctx.FeedType = feed.Classify(t.Name.Local, t.Name.Space)
				classified = true
				handler = d.newHandler(ctx.FeedType)
			}
			if handler != nil {
				handler.StartElement(ctx, t)
			}
		case xml.CharData:
			if handler != nil {
				handler.CharData(ctx, t)
			}
		case xml.EndElement:
			if handler != nil {
				handler.EndElement(ctx, t)
			}
		}
	}
}

func (d *Dispatcher) newHandler(t feed.Type) Handler {
	factory, ok := d.factories[t]
	if !ok {
		return nil
	}
	return factory()
}

func (d *Dispatcher) finalType(ctx *Context, classified bool) feed.Type {
	if !classified {
		return feed.Unknown
	}
	return ctx.FeedType
}

// lineIndex maps byte offsets to 1-based line/column positions.
type lineIndex struct {
	starts []int64
}

func newLineIndex(text string) *lineIndex {
	starts := []int64{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, int64(i)+1)
		}
	}
	return &lineIndex{starts: starts}
}

// position converts a decoder offset to a position. When the error is an
// xml.SyntaxError its own line number is authoritative.
func (x *lineIndex) position(offset int64, err error) diag.Position {
	var syn *xml.SyntaxError
	if errors.As(err, &syn) && syn.Line > 0 {
		col := 1
		if syn.Line <= len(x.starts) {
			col = int(offset-x.starts[syn.Line-1]) + 1
			if col < 1 {
				col = 1
			}
		}
		return diag.Position{Line: syn.Line, Column: col}
	}

	line := 1
	for i := len(x.starts) - 1; i >= 0; i-- {
		if offset >= x.starts[i] {
			line = i + 1
			break
		}
	}
	return diag.Position{Line: line, Column: int(offset-x.starts[line-1]) + 1}
}
