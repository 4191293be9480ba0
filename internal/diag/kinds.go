package diag

// Diagnostic kinds raised by the acquisition pipeline (transport tier).
const (
	KindValidatorLimit       Kind = "validator_limit"
	KindIOError              Kind = "io_error"
	KindHTTPError            Kind = "http_error"
	KindTimeout              Kind = "timeout"
	KindHTTPSProtocolError   Kind = "https_protocol_error"
	KindHTTPSProtocolWarning Kind = "https_protocol_warning"
	KindHTTPProtocolError    Kind = "http_protocol_error"
	KindTempRedirect         Kind = "temp_redirect"
	KindUncompressed         Kind = "uncompressed"
)

// Kinds raised during content negotiation and decoding.
const (
	KindMissingMediaType      Kind = "missing_media_type"
	KindUnexpectedContentType Kind = "unexpected_content_type"
	KindNonSpecificMediaType  Kind = "non_specific_media_type"
	KindMediaTypeMismatch     Kind = "media_type_mismatch"
	KindUnknownEncoding       Kind = "unknown_encoding"
	KindUnicodeError          Kind = "unicode_error"
	KindEncodingMismatch      Kind = "encoding_mismatch"
	KindSniffedFeed           Kind = "sniffed_feed"
	KindSniffedNonFeed        Kind = "sniffed_non_feed"
)

// Kinds raised by pre-parse quirk handling and the XML dispatch itself.
const (
	KindWPBlankLine   Kind = "wp_blank_line"
	KindBadXMLVersion Kind = "bad_xml_version"
	KindXMLParseError Kind = "xml_parse_error"
	KindInvalidRDF    Kind = "invalid_rdf"
)

// Kinds raised by the per-format rule modules.
const (
	KindUndefinedElement Kind = "undefined_element"
	KindMissingElement   Kind = "missing_element"
	KindMissingAttribute Kind = "missing_attribute"
	KindDuplicateElement Kind = "duplicate_element"
	KindUnknownVersion   Kind = "unknown_version"
	KindCharRefInContent Kind = "char_ref_in_content"
)

// Convenience constructors for the kinds the pipeline raises most.

// ValidatorLimit marks input that exceeded the hard byte cap.
func ValidatorLimit(limit string) Event {
	return New(KindValidatorLimit, SeverityError, "limit", limit)
}

// Uncompressed notes a transfer that used no content-encoding.
func Uncompressed() Event {
	return New(KindUncompressed, SeverityAdvisory)
}

// TempRedirect notes a redirect that should have been a permanent 301.
func TempRedirect() Event {
	return New(KindTempRedirect, SeverityAdvisory)
}

// BadXMLVersion carries an XML declaration version other than 1.0.
func BadXMLVersion(version string) Event {
	return New(KindBadXMLVersion, SeverityWarning, "version", version)
}

// XMLParseError wraps a fatal syntax error from the XML decoder.
func XMLParseError(msg string) Event {
	return New(KindXMLParseError, SeverityError, "message", msg)
}

// InvalidRDF wraps a structural error found by the RDF fallback pass.
func InvalidRDF(msg string) Event {
	return New(KindInvalidRDF, SeverityError, "message", msg)
}
