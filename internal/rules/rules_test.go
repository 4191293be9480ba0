package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/dispatch"
	"github.com/feedlint/feedlint/internal/feed"
	"github.com/feedlint/feedlint/internal/quirk"
)

// run parses doc through a fully registered dispatcher and returns the
// classified type with everything that got logged.
func run(t *testing.T, doc string, hint feed.Type) (feed.Type, []diag.Event) {
	t.Helper()
	d := dispatch.New(nil)
	RegisterAll(d)
	ctx := &dispatch.Context{
		Log:          diag.NewLog(false, false),
		CharRefLines: quirk.CharRefLines(doc),
	}
	res := d.Run(doc, ctx, hint)
	return res.FeedType, ctx.Log.Events()
}

func eventWith(events []diag.Event, kind diag.Kind, key, value string) *diag.Event {
	for i, ev := range events {
		if ev.Kind != kind {
			continue
		}
		if v, ok := ev.Param(key); ok && v == value {
			return &events[i]
		}
	}
	return nil
}

func kindCount(events []diag.Event, kind diag.Kind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestRSS2Valid(t *testing.T) {
	doc := `<rss version="2.0"><channel>
<title>t</title><link>u</link><description>d</description>
<item><title>i</title></item>
</channel></rss>`

	ft, events := run(t, doc, feed.Unknown)
	assert.Equal(t, feed.RSS2, ft)
	assert.Empty(t, events)
}

func TestRSS2MissingVersion(t *testing.T) {
	doc := `<rss><channel><title>t</title><link>u</link><description>d</description></channel></rss>`

	_, events := run(t, doc, feed.Unknown)
	ev := eventWith(events, diag.KindMissingAttribute, "attribute", "version")
	require.NotNil(t, ev)
	assert.Equal(t, diag.SeverityError, ev.Severity)
}

func TestRSS2UnknownVersion(t *testing.T) {
	doc := `<rss version="3.0"><channel><title>t</title><link>u</link><description>d</description></channel></rss>`

	_, events := run(t, doc, feed.Unknown)
	ev := eventWith(events, diag.KindUnknownVersion, "version", "3.0")
	require.NotNil(t, ev)
	assert.Equal(t, diag.SeverityWarning, ev.Severity)
}

func TestRSS2MissingChannelChildren(t *testing.T) {
	doc := `<rss version="2.0"><channel><title>t</title></channel></rss>`

	_, events := run(t, doc, feed.Unknown)
	assert.NotNil(t, eventWith(events, diag.KindMissingElement, "element", "link"))
	assert.NotNil(t, eventWith(events, diag.KindMissingElement, "element", "description"))
	assert.Nil(t, eventWith(events, diag.KindMissingElement, "element", "title"))
}

func TestRSS2DuplicateChannel(t *testing.T) {
	doc := `<rss version="2.0">
<channel><title>t</title><link>u</link><description>d</description></channel>
<channel><title>t</title><link>u</link><description>d</description></channel>
</rss>`

	_, events := run(t, doc, feed.Unknown)
	assert.Equal(t, 1, kindCount(events, diag.KindDuplicateElement))
}

func TestRSS2UndefinedTopLevel(t *testing.T) {
	doc := `<rss version="2.0"><banana/><channel><title>t</title><link>u</link><description>d</description></channel></rss>`

	_, events := run(t, doc, feed.Unknown)
	ev := eventWith(events, diag.KindUndefinedElement, "element", "banana")
	require.NotNil(t, ev)
}

func TestRSS2CharRefInDescription(t *testing.T) {
	doc := `<rss version="2.0"><channel>
<title>t</title><link>u</link><description>d</description>
<item><description>has &#x41; reference</description></item>
<item><description>has &#x42; another</description></item>
</channel></rss>`

	_, events := run(t, doc, feed.Unknown)
	assert.Equal(t, 2, kindCount(events, diag.KindCharRefInContent))
}

func TestRSS2CharRefOncePerElement(t *testing.T) {
	doc := `<rss version="2.0"><channel>
<title>t</title><link>u</link><description>d</description>
<item><description>one &#x41; two &#x42; same element</description></item>
</channel></rss>`

	_, events := run(t, doc, feed.Unknown)
	assert.Equal(t, 1, kindCount(events, diag.KindCharRefInContent))
}

func TestAtom10Valid(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom">
<id>urn:x:1</id><title>t</title><updated>2024-01-01T00:00:00Z</updated>
<entry><id>urn:x:2</id><title>e</title><updated>2024-01-01T00:00:00Z</updated></entry>
</feed>`

	ft, events := run(t, doc, feed.Unknown)
	assert.Equal(t, feed.Atom10, ft)
	assert.Empty(t, events)
}

func TestAtom10MissingFeedChildren(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom"><title>t</title></feed>`

	_, events := run(t, doc, feed.Unknown)
	assert.NotNil(t, eventWith(events, diag.KindMissingElement, "element", "id"))
	assert.NotNil(t, eventWith(events, diag.KindMissingElement, "element", "updated"))
}

func TestAtom10MissingEntryChildren(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom">
<id>urn:x:1</id><title>t</title><updated>2024-01-01T00:00:00Z</updated>
<entry><title>e</title></entry>
</feed>`

	_, events := run(t, doc, feed.Unknown)
	ev := eventWith(events, diag.KindMissingElement, "parent", "entry")
	require.NotNil(t, ev)
}

func TestAtom03UsesModified(t *testing.T) {
	doc := `<feed xmlns="http://purl.org/atom/ns#">
<id>urn:x:1</id><title>t</title><modified>2004-01-01T00:00:00Z</modified>
</feed>`

	ft, events := run(t, doc, feed.Unknown)
	assert.Equal(t, feed.Atom03, ft)
	assert.Empty(t, events)
}

func TestRSS1ChannelNeedsAbout(t *testing.T) {
	doc := `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/">
<channel><items/></channel>
</rdf:RDF>`

	ft, events := run(t, doc, feed.Unknown)
	assert.Equal(t, feed.RSS1, ft)
	assert.NotNil(t, eventWith(events, diag.KindMissingAttribute, "attribute", "rdf:about"))
}

func TestRSS1ChannelNeedsItems(t *testing.T) {
	doc := `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/">
<channel rdf:about="http://example.com/"/>
</rdf:RDF>`

	_, events := run(t, doc, feed.Unknown)
	assert.NotNil(t, eventWith(events, diag.KindMissingElement, "element", "items"))
}

func TestRSS1Valid(t *testing.T) {
	doc := `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/">
<channel rdf:about="http://example.com/"><items/></channel>
<item rdf:about="http://example.com/1"/>
</rdf:RDF>`

	_, events := run(t, doc, feed.Unknown)
	assert.Empty(t, events)
}

func TestKMLUnknownNamespace(t *testing.T) {
	doc := `<kml xmlns="http://example.com/not-kml"/>`

	ft, events := run(t, doc, feed.Unknown)
	assert.Equal(t, feed.KML, ft)
	assert.Equal(t, 1, kindCount(events, diag.KindUndefinedElement))
}

func TestKMLKnownNamespace(t *testing.T) {
	doc := `<kml xmlns="http://www.opengis.net/kml/2.2"><Document/></kml>`

	_, events := run(t, doc, feed.Unknown)
	assert.Empty(t, events)
}

func TestAppServiceNeedsWorkspace(t *testing.T) {
	doc := `<service xmlns="http://www.w3.org/2007/app"/>`

	_, events := run(t, doc, feed.AppService)
	assert.NotNil(t, eventWith(events, diag.KindMissingElement, "element", "workspace"))
}

func TestAppServiceValid(t *testing.T) {
	doc := `<service xmlns="http://www.w3.org/2007/app"><workspace/></service>`

	_, events := run(t, doc, feed.AppService)
	assert.Empty(t, events)
}

func TestAppCategoriesRelativeScheme(t *testing.T) {
	doc := `<categories xmlns="http://www.w3.org/2007/app" scheme="not-absolute"/>`

	_, events := run(t, doc, feed.AppCategories)
	assert.Equal(t, 1, kindCount(events, diag.KindUndefinedElement))
}

func TestAppCategoriesAbsoluteScheme(t *testing.T) {
	doc := `<categories xmlns="http://www.w3.org/2007/app" scheme="http://example.com/cats"/>`

	_, events := run(t, doc, feed.AppCategories)
	assert.Empty(t, events)
}
