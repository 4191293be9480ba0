package xmlenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedlint/feedlint/internal/diag"
)

func TestDecodePlainUTF8(t *testing.T) {
	t.Parallel()

	log := diag.NewLog(false, false)
	name, text, ok := Decode("application/rss+xml", "", []byte(`<?xml version="1.0"?><rss/>`), "utf-8", log)
	require.True(t, ok)
	assert.Equal(t, "utf-8", name)
	assert.Contains(t, text, "<rss/>")
	assert.Zero(t, log.Len())
}

func TestDecodeHonorsXMLDeclaration(t *testing.T) {
	t.Parallel()

	// "caf\xe9" in ISO-8859-1.
	data := append([]byte(`<?xml version="1.0" encoding="iso-8859-1"?><rss>caf`), 0xE9)
	data = append(data, []byte(`</rss>`)...)

	log := diag.NewLog(false, false)
	name, text, ok := Decode("", "", data, "utf-8", log)
	require.True(t, ok)
	assert.Equal(t, "windows-1252", name)
	assert.Contains(t, text, "café")
}

func TestDecodeDeclaredCharsetWins(t *testing.T) {
	t.Parallel()

	data := append([]byte(`<rss>caf`), 0xE9)
	data = append(data, []byte(`</rss>`)...)

	log := diag.NewLog(false, false)
	_, text, ok := Decode("text/xml", "iso-8859-1", data, "utf-8", log)
	require.True(t, ok)
	assert.Contains(t, text, "café")
}

func TestDecodeMismatchBetweenHeaderAndDeclaration(t *testing.T) {
	t.Parallel()

	data := []byte(`<?xml version="1.0" encoding="iso-8859-1"?><rss/>`)
	log := diag.NewLog(false, false)
	_, _, ok := Decode("text/xml", "utf-8", data, "utf-8", log)
	require.True(t, ok)
	require.Equal(t, 1, log.Len())
	assert.Equal(t, diag.KindEncodingMismatch, log.Events()[0].Kind)
}

func TestDecodeUTF8BOM(t *testing.T) {
	t.Parallel()

	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`<rss/>`)...)
	log := diag.NewLog(false, false)
	name, text, ok := Decode("", "", data, "utf-8", log)
	require.True(t, ok)
	assert.Equal(t, "utf-8", name)
	assert.Equal(t, "<rss/>", text)
}

func TestDecodeUTF16LE(t *testing.T) {
	t.Parallel()

	src := "<rss/>"
	data := []byte{0xFF, 0xFE}
	for _, r := range src {
		data = append(data, byte(r), 0x00)
	}
	log := diag.NewLog(false, false)
	name, text, ok := Decode("", "", data, "utf-8", log)
	require.True(t, ok)
	assert.Equal(t, "utf-16le", name)
	assert.Equal(t, "<rss/>", text)
}

func TestDecodeInvalidUTF8Fails(t *testing.T) {
	t.Parallel()

	data := []byte{'<', 'r', 0xFF, 0xFE, 0xFD}
	log := diag.NewLog(false, false)
	_, _, ok := Decode("", "utf-8", data, "utf-8", log)
	require.False(t, ok)
	require.GreaterOrEqual(t, log.Len(), 1)
	assert.Equal(t, diag.KindUnicodeError, log.Events()[log.Len()-1].Kind)
}

func TestDecodeUnknownDeclaredCharsetFallsBack(t *testing.T) {
	t.Parallel()

	log := diag.NewLog(false, false)
	name, _, ok := Decode("", "x-no-such-charset", []byte(`<rss/>`), "utf-8", log)
	require.True(t, ok)
	assert.Equal(t, "utf-8", name)
	require.Equal(t, 1, log.Len())
	assert.Equal(t, diag.KindUnknownEncoding, log.Events()[0].Kind)
}
