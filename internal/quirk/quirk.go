// Package quirk applies pre-parse rewrites and syntactic checks to the
// decoded document text. Everything here runs before the first XML token
// is read, so defects that would otherwise mask the whole parse can be
// patched around and still reported.
package quirk

import (
	"regexp"
	"strings"

	"github.com/feedlint/feedlint/internal/diag"
)

var (
	leadingBlankXMLDeclRE = regexp.MustCompile(`^\s+<\?xml`)
	wordpressGeneratorRE  = regexp.MustCompile(`<generator.*wordpress.*</generator>`)
	xmlVersionRE          = regexp.MustCompile(`^<\?\s*xml\s+version\s*=\s*['"]([-a-zA-Z0-9_.:]*)['"]`)
)

// Rearranged fixes the WordPress blank-line defect: content before the
// XML declaration in a document whose generator identifies WordPress.
// The declaration (and only the declaration) is moved to the front so
// that later well-formedness errors stay discoverable; every other byte
// keeps its original relative order. The defect itself is logged at 1:1.
func Rearranged(text string, log *diag.Log) string {
	if !leadingBlankXMLDeclRE.MatchString(text) || !wordpressGeneratorRE.MatchString(text) {
		return text
	}
	lt := strings.Index(text, "<")
	gt := strings.Index(text, ">")
	if lt > 0 && gt > 0 && lt < gt {
		log.Append(diag.New(diag.KindWPBlankLine, diag.SeverityAdvisory).At(1, 1))
		text = text[lt:gt+1] + text[0:lt] + text[gt+1:]
	}
	return text
}

// CheckXMLVersion logs a versioning diagnostic when the XML declaration
// names anything other than 1.0. Parsing proceeds either way.
func CheckXMLVersion(text string, log *diag.Log) {
	m := xmlVersionRE.FindStringSubmatch(text)
	if m != nil && m[1] != "1.0" {
		log.Append(diag.BadXMLVersion(m[1]))
	}
}

// CharRefLines reports, per line, whether the line contains a numeric
// character reference (&#x). The dispatcher hands the flags to the
// RSS-profile character-data heuristic; this is not itself a diagnostic.
func CharRefLines(text string) []bool {
	lines := strings.Split(text, "\n")
	flags := make([]bool, len(lines))
	for i, line := range lines {
		flags[i] = strings.Contains(line, "&#x")
	}
	return flags
}
