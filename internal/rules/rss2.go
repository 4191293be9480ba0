package rules

import (
	"encoding/xml"
	"strings"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/dispatch"
)

var rss2KnownVersions = map[string]bool{
	"2.0":  true,
	"0.91": true,
	"0.92": true,
	"0.93": true,
	"0.94": true,
}

var rss2RequiredChannelChildren = []string{"title", "link", "description"}

// rss2Handler validates the RSS 2.0 channel skeleton: version attribute,
// required channel children and duplicate channels. Item-level content
// rules stay deliberately shallow; structure is what the dispatcher
// guarantees.
type rss2Handler struct {
	nop

	depth          int
	channelCount   int
	channelSeen    map[string]bool
	inItem         bool
	itemElement    string
	charRefFlagged bool
}

func newRSS2Handler() *rss2Handler {
	return &rss2Handler{channelSeen: make(map[string]bool)}
}

func (h *rss2Handler) StartElement(ctx *dispatch.Context, el xml.StartElement) {
	h.depth++
	switch h.depth {
	case 1:
		version, ok := attr(el, "version")
		if !ok {
			ctx.LogAt(diag.New(diag.KindMissingAttribute, diag.SeverityError,
				"element", el.Name.Local, "attribute", "version"))
			return
		}
		if !rss2KnownVersions[version] {
			ctx.LogAt(diag.New(diag.KindUnknownVersion, diag.SeverityWarning,
				"version", version))
		}
	case 2:
		if el.Name.Local == "channel" {
			h.channelCount++
			if h.channelCount > 1 {
				ctx.LogAt(diag.New(diag.KindDuplicateElement, diag.SeverityError,
					"element", "channel"))
			}
		} else {
			ctx.LogAt(diag.New(diag.KindUndefinedElement, diag.SeverityError,
				"element", el.Name.Local, "parent", "rss"))
		}
	case 3:
		if el.Name.Local == "item" {
			h.inItem = true
		} else {
			h.channelSeen[el.Name.Local] = true
		}
	case 4:
		if h.inItem {
			h.itemElement = el.Name.Local
			h.charRefFlagged = false
		}
	}
}

// CharData applies the RSS-profile character-data heuristic: a numeric
// character reference inside item content earns one advisory per
// element, keyed off the per-line flags computed before parsing.
func (h *rss2Handler) CharData(ctx *dispatch.Context, text xml.CharData) {
	if !h.inItem || h.itemElement != "description" || h.charRefFlagged {
		return
	}
	if strings.TrimSpace(string(text)) == "" {
		return
	}
	line := ctx.Pos().Line
	if line >= 1 && line <= len(ctx.CharRefLines) && ctx.CharRefLines[line-1] {
		h.charRefFlagged = true
		ctx.LogAt(diag.New(diag.KindCharRefInContent, diag.SeverityAdvisory,
			"element", h.itemElement))
	}
}

func (h *rss2Handler) EndElement(ctx *dispatch.Context, el xml.EndElement) {
	switch h.depth {
	case 2:
		if el.Name.Local == "channel" && h.channelCount == 1 {
			for _, required := range rss2RequiredChannelChildren {
				if !h.channelSeen[required] {
					ctx.LogAt(diag.New(diag.KindMissingElement, diag.SeverityError,
						"parent", "channel", "element", required))
				}
			}
		}
	case 3:
		if el.Name.Local == "item" {
			h.inItem = false
		}
	case 4:
		h.itemElement = ""
	}
	h.depth--
}
