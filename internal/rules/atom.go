package rules

import (
	"encoding/xml"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/dispatch"
	"github.com/feedlint/feedlint/internal/feed"
)

var atomRequiredFeedChildren = []string{"id", "title", "updated"}

// atomHandler checks the Atom feed/entry skeleton. Atom 0.3 used
// modified instead of updated; everything else is shared.
type atomHandler struct {
	nop

	version feed.Type
	depth   int

	feedSeen  map[string]bool
	entrySeen map[string]bool
	inEntry   bool
}

func newAtomHandler(version feed.Type) *atomHandler {
	return &atomHandler{
		version:  version,
		feedSeen: make(map[string]bool),
	}
}

func (h *atomHandler) required() []string {
	if h.version == feed.Atom03 {
		return []string{"id", "title", "modified"}
	}
	return atomRequiredFeedChildren
}

func (h *atomHandler) StartElement(ctx *dispatch.Context, el xml.StartElement) {
	h.depth++
	switch h.depth {
	case 2:
		if el.Name.Local == "entry" {
			h.inEntry = true
			h.entrySeen = make(map[string]bool)
		} else {
			h.feedSeen[el.Name.Local] = true
		}
	case 3:
		if h.inEntry {
			h.entrySeen[el.Name.Local] = true
		}
	}
}

func (h *atomHandler) EndElement(ctx *dispatch.Context, el xml.EndElement) {
	if h.depth == 2 && el.Name.Local == "entry" {
		for _, required := range h.required() {
			if !h.entrySeen[required] {
				ctx.LogAt(diag.New(diag.KindMissingElement, diag.SeverityError,
					"parent", "entry", "element", required))
			}
		}
		h.inEntry = false
	}
	h.depth--
}

func (h *atomHandler) EndDocument(ctx *dispatch.Context) {
	for _, required := range h.required() {
		if !h.feedSeen[required] {
			ctx.LogAt(diag.New(diag.KindMissingElement, diag.SeverityError,
				"parent", "feed", "element", required))
		}
	}
}
