// Package rules holds the per-format validation handlers the dispatcher
// routes events to. Each handler is instantiated fresh per run and
// reports findings only through the dispatch context; the dispatcher
// never reads anything back.
package rules

import (
	"encoding/xml"

	"github.com/feedlint/feedlint/internal/dispatch"
	"github.com/feedlint/feedlint/internal/feed"
)

// RegisterAll installs every format handler on the dispatcher.
func RegisterAll(d *dispatch.Dispatcher) {
	d.Register(feed.RSS2, func() dispatch.Handler { return newRSS2Handler() })
	d.Register(feed.RSS1, func() dispatch.Handler { return newRSS1Handler() })
	d.Register(feed.Atom10, func() dispatch.Handler { return newAtomHandler(feed.Atom10) })
	d.Register(feed.Atom03, func() dispatch.Handler { return newAtomHandler(feed.Atom03) })
	d.Register(feed.KML, func() dispatch.Handler { return newKMLHandler() })
	d.Register(feed.AppService, func() dispatch.Handler { return newAppHandler(feed.AppService) })
	d.Register(feed.AppCategories, func() dispatch.Handler { return newAppHandler(feed.AppCategories) })
}

// nop gives handlers default no-op events so each format only spells
// out what it cares about.
type nop struct{}

func (nop) StartElement(*dispatch.Context, xml.StartElement) {}
func (nop) CharData(*dispatch.Context, xml.CharData)         {}
func (nop) EndElement(*dispatch.Context, xml.EndElement)     {}
func (nop) EndDocument(*dispatch.Context)                    {}

// attr returns the value of the named attribute, ignoring namespace
// prefixes on the attribute itself.
func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
