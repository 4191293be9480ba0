// Package feed holds the feed-type classification shared by the
// dispatcher, the media-type checks and the API layer.
package feed

// Type is the concrete syndication format inferred from a document's root
// element and namespace. A validation run carries exactly one value, set
// at most once.
type Type string

// Recognized feed types. Unknown means classification never happened,
// e.g. the parse aborted before the root element was seen.
const (
	Unknown       Type = "unknown"
	RSS1          Type = "rss1"
	RSS2          Type = "rss2"
	Atom03        Type = "atom03"
	Atom10        Type = "atom10"
	AppService    Type = "app_service"
	AppCategories Type = "app_categories"
	KML           Type = "kml"
)

// Namespaces that identify feed vocabularies at the root element.
const (
	NSRDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSRSS1    = "http://purl.org/rss/1.0/"
	NSAtom10  = "http://www.w3.org/2005/Atom"
	NSAtom03  = "http://purl.org/atom/ns#"
	NSAtomPub = "http://www.w3.org/2007/app"
	NSKML22   = "http://www.opengis.net/kml/2.2"
	NSKML21   = "http://earth.google.com/kml/2.1"
	NSKML20   = "http://earth.google.com/kml/2.0"
)

// Classify maps a root element (local name + namespace URI) to a feed
// type. Media-type hints take precedence over this table; the dispatcher
// applies them before the root element is ever seen.
func Classify(local, ns string) Type {
	switch local {
	case "rss":
		return RSS2
	case "RDF":
		if ns == NSRDF {
			return RSS1
		}
	case "feed":
		if ns == NSAtom03 {
			return Atom03
		}
		// Unprefixed and 2005 Atom namespace both validate as 1.0.
		return Atom10
	case "service":
		return AppService
	case "categories":
		return AppCategories
	case "kml":
		return KML
	}
	return Unknown
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if t == "" {
		return string(Unknown)
	}
	return string(t)
}
