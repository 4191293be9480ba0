package mediatype

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/feed"
)

func TestSniffPossibleFeed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"html doctype", "<!DOCTYPE html><html><body><rss></body></html>", false},
		{"html doctype lowercase", "<!doctype html><rss>", false},
		{"rss in first 512", `<?xml version="1.0"?><rss version="2.0"></rss>`, true},
		{"atom in first 512", `<feed xmlns="http://www.w3.org/2005/Atom"/>`, true},
		{"rdf in first 512", `<rdf:RDF xmlns:rdf="x"/>`, true},
		{"kml in first 512", `<kml></kml>`, true},
		{"tag hidden in comment", "<!-- <rss> -->plain text", false},
		{"closing tag on last line", strings.Repeat("x", 600) + "\n</feed>", true},
		{"closing tag padded", strings.Repeat("x", 600) + "\n   </rss>   \n", true},
		{"nothing feedish", "just some text\nacross lines", false},
		{"tag beyond 512 no closing line", strings.Repeat(" ", 600) + "<rss>", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SniffPossibleFeed(tc.raw); got != tc.want {
				t.Fatalf("SniffPossibleFeed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCheckValid(t *testing.T) {
	t.Parallel()

	t.Run("specific feed type", func(t *testing.T) {
		log := diag.NewLog(false, false)
		mt, cs := CheckValid("application/rss+xml; charset=utf-8", log)
		assert.Equal(t, TypeRSS, mt)
		assert.Equal(t, "utf-8", cs)
		assert.Zero(t, log.Len())
	})

	t.Run("generic xml advisory", func(t *testing.T) {
		log := diag.NewLog(false, false)
		mt, _ := CheckValid("text/xml", log)
		assert.Equal(t, "text/xml", mt)
		require.Equal(t, 1, log.Len())
		assert.Equal(t, diag.KindNonSpecificMediaType, log.Events()[0].Kind)
	})

	t.Run("non-feed type", func(t *testing.T) {
		log := diag.NewLog(false, false)
		mt, _ := CheckValid("text/html", log)
		assert.Equal(t, "text/html", mt)
		require.Equal(t, 1, log.Len())
		assert.Equal(t, diag.KindUnexpectedContentType, log.Events()[0].Kind)
	})

	t.Run("missing header", func(t *testing.T) {
		log := diag.NewLog(false, false)
		mt, cs := CheckValid("", log)
		assert.Empty(t, mt)
		assert.Empty(t, cs)
		require.Equal(t, 1, log.Len())
		assert.Equal(t, diag.KindMissingMediaType, log.Events()[0].Kind)
	})

	t.Run("unparseable header", func(t *testing.T) {
		log := diag.NewLog(false, false)
		mt, _ := CheckValid("application/;;", log)
		assert.Empty(t, mt)
		require.Equal(t, 1, log.Len())
	})
}

func TestCheckAgainstFeedType(t *testing.T) {
	t.Parallel()

	t.Run("mismatch", func(t *testing.T) {
		log := diag.NewLog(false, false)
		CheckAgainstFeedType(TypeRSS, feed.Atom10, log)
		require.Equal(t, 1, log.Len())
		assert.Equal(t, diag.KindMediaTypeMismatch, log.Events()[0].Kind)
	})

	t.Run("match", func(t *testing.T) {
		log := diag.NewLog(false, false)
		CheckAgainstFeedType(TypeAtom, feed.Atom10, log)
		assert.Zero(t, log.Len())
	})

	t.Run("generic type has no expectation", func(t *testing.T) {
		log := diag.NewLog(false, false)
		CheckAgainstFeedType("text/xml", feed.RSS2, log)
		assert.Zero(t, log.Len())
	})

	t.Run("unknown feed type skipped", func(t *testing.T) {
		log := diag.NewLog(false, false)
		CheckAgainstFeedType(TypeRSS, feed.Unknown, log)
		assert.Zero(t, log.Len())
	})
}

func TestContentSniffing(t *testing.T) {
	t.Parallel()

	t.Run("feed served as html", func(t *testing.T) {
		log := diag.NewLog(false, false)
		ContentSniffing("text/html", []byte(`<rss version="2.0"></rss>`), log)
		require.Equal(t, 1, log.Len())
		assert.Equal(t, diag.KindSniffedFeed, log.Events()[0].Kind)
	})

	t.Run("html served as feed", func(t *testing.T) {
		log := diag.NewLog(false, false)
		ContentSniffing(TypeRSS, []byte("<!DOCTYPE html><html></html>"), log)
		require.Equal(t, 1, log.Len())
		assert.Equal(t, diag.KindSniffedNonFeed, log.Events()[0].Kind)
	})

	t.Run("agreement stays quiet", func(t *testing.T) {
		log := diag.NewLog(false, false)
		ContentSniffing(TypeRSS, []byte(`<rss version="2.0"></rss>`), log)
		assert.Zero(t, log.Len())
	})
}
