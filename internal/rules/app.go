package rules

import (
	"encoding/xml"
	"strings"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/dispatch"
	"github.com/feedlint/feedlint/internal/feed"
)

// appHandler covers Atom Publishing Protocol service and categories
// documents.
type appHandler struct {
	nop

	kind  feed.Type
	depth int

	workspaceSeen bool
}

func newAppHandler(kind feed.Type) *appHandler {
	return &appHandler{kind: kind}
}

func (h *appHandler) StartElement(ctx *dispatch.Context, el xml.StartElement) {
	h.depth++
	switch h.kind {
	case feed.AppService:
		if h.depth == 2 && el.Name.Local == "workspace" {
			h.workspaceSeen = true
		}
	case feed.AppCategories:
		if h.depth == 1 {
			if scheme, ok := attr(el, "scheme"); ok && !strings.Contains(scheme, "://") {
				ctx.LogAt(diag.New(diag.KindUndefinedElement, diag.SeverityWarning,
					"attribute", "scheme", "value", scheme))
			}
		}
	}
}

func (h *appHandler) EndElement(_ *dispatch.Context, _ xml.EndElement) {
	h.depth--
}

func (h *appHandler) EndDocument(ctx *dispatch.Context) {
	if h.kind == feed.AppService && !h.workspaceSeen {
		ctx.LogAt(diag.New(diag.KindMissingElement, diag.SeverityError,
			"parent", "service", "element", "workspace"))
	}
}
