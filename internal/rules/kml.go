package rules

import (
	"encoding/xml"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/dispatch"
	"github.com/feedlint/feedlint/internal/feed"
)

var knownKMLNamespaces = map[string]bool{
	feed.NSKML22: true,
	feed.NSKML21: true,
	feed.NSKML20: true,
}

// kmlHandler does root-level sanity only; KML geometry is out of scope.
type kmlHandler struct {
	nop

	depth int
}

func newKMLHandler() *kmlHandler {
	return &kmlHandler{}
}

func (h *kmlHandler) StartElement(ctx *dispatch.Context, el xml.StartElement) {
	h.depth++
	if h.depth == 1 && !knownKMLNamespaces[el.Name.Space] {
		ctx.LogAt(diag.New(diag.KindUndefinedElement, diag.SeverityWarning,
			"element", "kml", "namespace", el.Name.Space))
	}
}

func (h *kmlHandler) EndElement(_ *dispatch.Context, _ xml.EndElement) {
	h.depth--
}
