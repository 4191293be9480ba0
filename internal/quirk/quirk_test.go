package quirk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedlint/feedlint/internal/diag"
)

const wordpressDoc = "\n\n<?xml version=\"1.0\"?>\n<rss version=\"2.0\"><channel>" +
	"<generator>http://wordpress.org/?v=4.2</generator></channel></rss>"

func TestRearrangedMovesDeclarationToFront(t *testing.T) {
	t.Parallel()

	log := diag.NewLog(false, false)
	out := Rearranged(wordpressDoc, log)

	require.True(t, strings.HasPrefix(out, "<?xml version=\"1.0\"?>"), "declaration must lead: %q", out[:30])
	// The moved-out blank lines survive, just relocated.
	assert.Contains(t, out, "\n\n")
	assert.Contains(t, out, "<generator>http://wordpress.org/?v=4.2</generator>")

	require.Equal(t, 1, log.Len())
	ev := log.Events()[0]
	assert.Equal(t, diag.KindWPBlankLine, ev.Kind)
	// The rewrite recovered the document, so the finding must not fail
	// the run.
	assert.Equal(t, diag.SeverityAdvisory, ev.Severity)
	assert.False(t, log.HasErrors())
	require.NotNil(t, ev.Pos)
	assert.Equal(t, 1, ev.Pos.Line)
	assert.Equal(t, 1, ev.Pos.Column)
}

func TestRearrangedIgnoresNonWordpressDocuments(t *testing.T) {
	t.Parallel()

	doc := "\n\n<?xml version=\"1.0\"?>\n<rss version=\"2.0\"></rss>"
	log := diag.NewLog(false, false)
	out := Rearranged(doc, log)
	assert.Equal(t, doc, out)
	assert.Zero(t, log.Len())
}

func TestRearrangedIgnoresCleanDocuments(t *testing.T) {
	t.Parallel()

	doc := "<?xml version=\"1.0\"?>\n<rss><channel><generator>wordpress</generator></channel></rss>"
	log := diag.NewLog(false, false)
	out := Rearranged(doc, log)
	assert.Equal(t, doc, out)
	assert.Zero(t, log.Len())
}

func TestCheckXMLVersion(t *testing.T) {
	t.Parallel()

	t.Run("version 1.1 flagged", func(t *testing.T) {
		log := diag.NewLog(false, false)
		CheckXMLVersion(`<?xml version="1.1" encoding="utf-8"?><rss/>`, log)
		require.Equal(t, 1, log.Len())
		ev := log.Events()[0]
		assert.Equal(t, diag.KindBadXMLVersion, ev.Kind)
		v, ok := ev.Param("version")
		require.True(t, ok)
		assert.Equal(t, "1.1", v)
	})

	t.Run("version 1.0 clean", func(t *testing.T) {
		log := diag.NewLog(false, false)
		CheckXMLVersion(`<?xml version="1.0"?><rss/>`, log)
		assert.Zero(t, log.Len())
	})

	t.Run("no declaration", func(t *testing.T) {
		log := diag.NewLog(false, false)
		CheckXMLVersion(`<rss version="2.0"/>`, log)
		assert.Zero(t, log.Len())
	})
}

func TestCharRefLines(t *testing.T) {
	t.Parallel()

	flags := CharRefLines("plain\n&#xA9; entity here\nno ref\ntail &#x2014;")
	require.Len(t, flags, 4)
	assert.Equal(t, []bool{false, true, false, true}, flags)
}
