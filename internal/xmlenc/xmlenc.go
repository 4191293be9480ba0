// Package xmlenc resolves the text encoding of a feed document and
// decodes it to UTF-8 before any XML tokenization happens. Resolution
// order: byte-order mark, declared HTTP charset, XML declaration
// pseudo-attribute, caller-supplied fallback.
package xmlenc

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/feedlint/feedlint/internal/diag"
)

var xmlDeclEncodingRE = regexp.MustCompile(`^<\?xml[^>]*?encoding\s*=\s*["']([A-Za-z0-9._-]+)["']`)

// Decode resolves the encoding of data and converts it to UTF-8 text.
// ok is false only on unrecoverable decode failure; in that case the
// caller must end the run with a diagnostics-only result.
func Decode(mediaType, declared string, data []byte, fallback string, log *diag.Log) (name string, text string, ok bool) {
	if fallback == "" {
		fallback = "utf-8"
	}

	if enc, bomName := bomEncoding(data); enc != nil {
		return decodeWith(bomName, enc, data, log)
	}

	declEncoding := sniffXMLDecl(data)

	if declared != "" {
		if declEncoding != "" && !strings.EqualFold(declared, declEncoding) {
			log.Append(diag.New(diag.KindEncodingMismatch, diag.SeverityWarning,
				"charset", declared, "encoding", declEncoding))
		}
		if enc, canonical := lookup(declared); enc != nil {
			return decodeWith(canonical, enc, data, log)
		}
		log.Append(diag.New(diag.KindUnknownEncoding, diag.SeverityWarning,
			"encoding", declared))
	}

	if declEncoding != "" {
		if enc, canonical := lookup(declEncoding); enc != nil {
			return decodeWith(canonical, enc, data, log)
		}
		log.Append(diag.New(diag.KindUnknownEncoding, diag.SeverityWarning,
			"encoding", declEncoding))
	}

	enc, canonical := lookup(fallback)
	if enc == nil {
		log.Append(diag.New(diag.KindUnknownEncoding, diag.SeverityWarning,
			"encoding", fallback))
		return "", "", false
	}
	return decodeWith(canonical, enc, data, log)
}

func lookup(label string) (encoding.Encoding, string) {
	enc, canonical := charset.Lookup(label)
	if enc == nil {
		return nil, ""
	}
	return enc, canonical
}

// bomEncoding detects a byte-order mark. UTF-8 BOMs are tolerated and
// consumed by the x/text decoder; UTF-16 needs the right endianness.
func bomEncoding(data []byte) (encoding.Encoding, string) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return unicode.UTF8BOM, "utf-8"
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), "utf-16be"
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), "utf-16le"
	}
	return nil, ""
}

// sniffXMLDecl pulls the encoding pseudo-attribute out of an XML
// declaration, assuming an ASCII-compatible byte stream.
func sniffXMLDecl(data []byte) string {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	m := xmlDeclEncodingRE.FindSubmatch(head)
	if m == nil {
		return ""
	}
	return string(m[1])
}

func decodeWith(name string, enc encoding.Encoding, data []byte, log *diag.Log) (string, string, bool) {
	// x/text decoders substitute U+FFFD instead of failing, so UTF-8
	// input has to be validated strictly up front: silently replacing
	// bytes would hide the defect the diagnostic exists to report.
	if name == "utf-8" {
		if !utf8.Valid(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})) {
			log.Append(diag.New(diag.KindUnicodeError, diag.SeverityError,
				"encoding", name))
			return name, "", false
		}
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		log.Append(diag.New(diag.KindUnicodeError, diag.SeverityError,
			"encoding", name, "exception", err.Error()))
		return name, "", false
	}
	if !utf8.Valid(decoded) {
		log.Append(diag.New(diag.KindUnicodeError, diag.SeverityError,
			"encoding", name))
		return name, "", false
	}
	return name, string(decoded), true
}
