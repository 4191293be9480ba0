// Package mediatype implements content-type negotiation for feed
// documents: header validation, media-type vs. feed-type cross checks,
// and header-independent content sniffing. Nothing here is fatal; every
// finding goes to the shared diagnostic log and callers always get a
// best-effort answer back.
package mediatype

import (
	"mime"
	"regexp"
	"strings"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/feed"
)

// Media types that identify a specific feed vocabulary.
const (
	TypeRSS     = "application/rss+xml"
	TypeAtom    = "application/atom+xml"
	TypeRDF     = "application/rdf+xml"
	TypeAtomSvc = "application/atomsvc+xml"
	TypeAtomCat = "application/atomcat+xml"
	TypeKML     = "application/vnd.google-earth.kml+xml"
	TypeKMZ     = "application/vnd.google-earth.kmz"
)

// Generic XML types: accepted, but worth an advisory because they say
// nothing about which vocabulary to expect.
var genericXML = map[string]bool{
	"text/xml":        true,
	"application/xml": true,
}

var feedCapable = map[string]bool{
	TypeRSS:           true,
	TypeAtom:          true,
	TypeRDF:           true,
	TypeAtomSvc:       true,
	TypeAtomCat:       true,
	TypeKML:           true,
	TypeKMZ:           true,
	"text/xml":        true,
	"application/xml": true,
}

// expectedTypes maps a specific media type to the feed types it may
// legitimately label.
var expectedTypes = map[string][]feed.Type{
	TypeRSS:     {feed.RSS1, feed.RSS2},
	TypeAtom:    {feed.Atom03, feed.Atom10},
	TypeRDF:     {feed.RSS1},
	TypeAtomSvc: {feed.AppService},
	TypeAtomCat: {feed.AppCategories},
	TypeKML:     {feed.KML},
	TypeKMZ:     {feed.KML},
}

// CheckValid parses a Content-Type header and returns the media type and
// charset, logging anything suspicious. It never fails: an unparseable
// header yields empty values plus a diagnostic.
func CheckValid(contentType string, log *diag.Log) (mediaType, charset string) {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		log.Append(diag.New(diag.KindMissingMediaType, diag.SeverityWarning))
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		log.Append(diag.New(diag.KindUnexpectedContentType, diag.SeverityWarning,
			"contentType", contentType))
		return "", ""
	}
	charset = params["charset"]
	switch {
	case genericXML[mt]:
		log.Append(diag.New(diag.KindNonSpecificMediaType, diag.SeverityAdvisory,
			"contentType", mt))
	case !feedCapable[mt]:
		log.Append(diag.New(diag.KindUnexpectedContentType, diag.SeverityWarning,
			"contentType", mt))
	}
	return mt, charset
}

// CheckAgainstFeedType cross-checks the declared media type against the
// feed type the dispatcher actually observed. Runs after dispatch.
func CheckAgainstFeedType(mediaType string, t feed.Type, log *diag.Log) {
	if t == feed.Unknown || t == "" {
		return
	}
	expected, specific := expectedTypes[mediaType]
	if !specific {
		return
	}
	for _, want := range expected {
		if want == t {
			return
		}
	}
	log.Append(diag.New(diag.KindMediaTypeMismatch, diag.SeverityWarning,
		"contentType", mediaType, "feedType", t.String()))
}

// ContentSniffing compares the declared media type with what the raw
// bytes look like. Advisory only; it never overrides validation.
func ContentSniffing(mediaType string, data []byte, log *diag.Log) {
	looksLikeFeed := SniffPossibleFeed(string(data))
	_, declaredFeed := expectedTypes[mediaType]
	switch {
	case looksLikeFeed && !declaredFeed && mediaType != "" && !genericXML[mediaType]:
		log.Append(diag.New(diag.KindSniffedFeed, diag.SeverityAdvisory,
			"contentType", mediaType))
	case !looksLikeFeed && declaredFeed:
		log.Append(diag.New(diag.KindSniffedNonFeed, diag.SeverityAdvisory,
			"contentType", mediaType))
	}
}

// Comments spanning lines are deliberately left alone; only same-line
// comments can hide a recognizable opening tag in practice.
var commentRE = regexp.MustCompile(`<!--.*?-->`)

// SniffPossibleFeed uses wild heuristics to detect something that might
// be intended as a feed.
func SniffPossibleFeed(raw string) bool {
	if strings.HasPrefix(strings.ToLower(raw), "<!doctype html") {
		return false
	}

	raw = commentRE.ReplaceAllString(raw, "")
	firstPart := raw
	if len(firstPart) > 512 {
		firstPart = firstPart[:512]
	}
	for _, tag := range []string{"<rss", "<feed", "<rdf:RDF", "<kml"} {
		if strings.Contains(firstPart, tag) {
			return true
		}
	}

	lines := strings.Split(strings.TrimSpace(raw), "\n")
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	switch lastLine {
	case "</rss>", "</feed>", "</rdf:RDF>", "</kml>":
		return true
	}
	return false
}
