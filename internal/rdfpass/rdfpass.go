// Package rdfpass is the secondary structural pass for RDF-based feeds.
// The primary dispatch is not RDF-aware, so container mistakes that are
// perfectly well-formed XML slip through it; this pass re-reads the text
// with RDF container rules and nothing else. It builds no triples and
// keeps no state beyond one call.
package rdfpass

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/feed"
)

// Engine is the capability hook the validator checks before running the
// pass. Noop is the default when no RDF engine is wired in.
type Engine interface {
	Check(text string, log *diag.Log)
}

// Noop does nothing. It keeps the validator free of nil checks.
type Noop struct{}

// Check implements Engine.
func (Noop) Check(string, *diag.Log) {}

// XMLEngine validates RDF/XML container structure. All findings are
// InvalidRDF events, deliberately distinct in kind from the primary
// pass's parse errors.
type XMLEngine struct{}

var rdfContainers = map[string]bool{
	"Seq": true,
	"Bag": true,
	"Alt": true,
}

// Check implements Engine. Errors in the engine itself never escape;
// the pass is best-effort enrichment.
func (XMLEngine) Check(text string, log *diag.Log) {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity

	// Prefix bindings live and die with this call.
	type frame struct {
		local     string
		space     string
		container bool
	}
	var stack []frame

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Append(diag.InvalidRDF(err.Error()))
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				if t.Name.Local != "RDF" || t.Name.Space != feed.NSRDF {
					log.Append(diag.InvalidRDF(
						"root element is not rdf:RDF"))
				}
			} else {
				parent := stack[len(stack)-1]
				isLi := t.Name.Space == feed.NSRDF && t.Name.Local == "li"
				if parent.container && !isLi {
					log.Append(diag.InvalidRDF(
						"rdf:" + parent.local + " may only contain rdf:li members"))
				}
				if !parent.container && isLi {
					log.Append(diag.InvalidRDF(
						"rdf:li outside an RDF container"))
				}
			}
			stack = append(stack, frame{
				local:     t.Name.Local,
				space:     t.Name.Space,
				container: t.Name.Space == feed.NSRDF && rdfContainers[t.Name.Local],
			})
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
}
