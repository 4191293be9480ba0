package rules

import (
	"encoding/xml"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/dispatch"
	"github.com/feedlint/feedlint/internal/feed"
)

// rss1Handler validates the RDF/RSS1 channel shell: the channel needs an
// rdf:about identity and an items container. Deeper RDF structure is the
// fallback pass's job.
type rss1Handler struct {
	nop

	depth     int
	inChannel bool
	itemsSeen bool
}

func newRSS1Handler() *rss1Handler {
	return &rss1Handler{}
}

func (h *rss1Handler) StartElement(ctx *dispatch.Context, el xml.StartElement) {
	h.depth++
	switch h.depth {
	case 2:
		switch el.Name.Local {
		case "channel":
			h.inChannel = true
			if _, ok := rdfAbout(el); !ok {
				ctx.LogAt(diag.New(diag.KindMissingAttribute, diag.SeverityError,
					"element", "channel", "attribute", "rdf:about"))
			}
		case "item", "image", "textinput":
			// Top-level resources are legal RSS1.
		default:
			ctx.LogAt(diag.New(diag.KindUndefinedElement, diag.SeverityWarning,
				"element", el.Name.Local, "parent", "rdf:RDF"))
		}
	case 3:
		if h.inChannel && el.Name.Local == "items" {
			h.itemsSeen = true
		}
	}
}

func (h *rss1Handler) EndElement(ctx *dispatch.Context, el xml.EndElement) {
	if h.depth == 2 && el.Name.Local == "channel" {
		if !h.itemsSeen {
			ctx.LogAt(diag.New(diag.KindMissingElement, diag.SeverityError,
				"parent", "channel", "element", "items"))
		}
		h.inChannel = false
	}
	h.depth--
}

func rdfAbout(el xml.StartElement) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == "about" && a.Name.Space == feed.NSRDF {
			return a.Value, true
		}
	}
	return "", false
}
