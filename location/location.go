// Package location parses resource addresses that may point at a local file,
// an HTTP(S) endpoint, an S3 object, or an entry nested inside a zip archive
// that itself lives at any of those places.
package location

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// MaxDepth bounds how many archive layers a single identifier may nest.
const MaxDepth = 16

// ErrInvalidLocation is returned for identifiers that cannot be parsed or
// whose scheme is not supported.
var ErrInvalidLocation = errors.New("invalid location")

const (
	archivePrefix  = "archive:"
	jarPrefix      = "jar:"
	entrySeparator = "!/"
)

// Location is a parsed resource address. The concrete type is one of Plain,
// Object, HTTP or Archive.
type Location interface {
	// String reassembles the identifier.
	String() string

	location()
}

// Plain is a path on the local filesystem.
type Plain struct {
	Path string
}

// Object is an object in an S3-compatible store.
type Object struct {
	Bucket string
	Key    string
}

// HTTP is an http:// or https:// URL.
type HTTP struct {
	URL *url.URL
}

// Archive is a zip archive located at Inner. Entry names a file inside the
// archive; an empty Entry denotes the archive as a whole.
type Archive struct {
	Inner Location
	Entry string
}

func (Plain) location()   {}
func (Object) location()  {}
func (HTTP) location()    {}
func (Archive) location() {}

func (p Plain) String() string { return p.Path }

func (o Object) String() string {
	if o.Key == "" {
		return "s3://" + o.Bucket
	}
	return "s3://" + o.Bucket + "/" + o.Key
}

func (h HTTP) String() string { return h.URL.String() }

func (a Archive) String() string {
	return archivePrefix + a.Inner.String() + entrySeparator + a.Entry
}

// Name returns the last path segment of the object key.
func (o Object) Name() string {
	return path.Base(strings.TrimSuffix(o.Key, "/"))
}

// Name returns the last segment of the URL path, or "" when the path is empty
// or ends with a slash.
func (h HTTP) Name() string {
	p := h.URL.Path
	if i := strings.LastIndex(p, "/"); i != -1 {
		return p[i+1:]
	}
	return p
}

// Parse parses raw into a Location. Parsing is syntactic only: nothing is
// read from the network or the filesystem.
func Parse(raw string) (Location, error) {
	return parse(raw, 0)
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) Location {
	loc, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

func parse(raw string, depth int) (Location, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: %q: archive nesting exceeds %d levels", ErrInvalidLocation, raw, MaxDepth)
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrInvalidLocation)
	}

	if rest, ok := cutArchivePrefix(raw); ok {
		return parseArchive(raw, rest, depth)
	}

	scheme, ok := schemeOf(raw)
	if !ok {
		return Plain{Path: raw}, nil
	}

	switch scheme {
	case "file":
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidLocation, raw, err)
		}
		if u.Path == "" {
			return nil, fmt.Errorf("%w: %q: missing path", ErrInvalidLocation, raw)
		}
		return Plain{Path: u.Path}, nil
	case "http", "https":
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidLocation, raw, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidLocation, raw)
		}
		return HTTP{URL: u}, nil
	case "s3":
		rest, ok := strings.CutPrefix(raw[len(scheme)+1:], "//")
		bucket, key, _ := strings.Cut(rest, "/")
		if !ok || bucket == "" {
			return nil, fmt.Errorf("%w: %q: missing bucket", ErrInvalidLocation, raw)
		}
		return Object{Bucket: bucket, Key: key}, nil
	default:
		return nil, fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidLocation, raw, scheme)
	}
}

// parseArchive splits the body of an archive identifier at the last entry
// separator, so that the inner identifier may itself be an archive.
func parseArchive(raw, rest string, depth int) (Location, error) {
	inner, entry := rest, ""
	if i := strings.LastIndex(rest, entrySeparator); i != -1 {
		inner, entry = rest[:i], rest[i+len(entrySeparator):]
	}
	if inner == "" {
		return nil, fmt.Errorf("%w: %q: missing archive location", ErrInvalidLocation, raw)
	}

	innerLoc, err := parse(inner, depth+1)
	if err != nil {
		return nil, err
	}
	return Archive{Inner: innerLoc, Entry: entry}, nil
}

func cutArchivePrefix(raw string) (string, bool) {
	if rest, ok := strings.CutPrefix(raw, archivePrefix); ok {
		return rest, true
	}
	return strings.CutPrefix(raw, jarPrefix)
}

// schemeOf reports the lower-cased URL scheme of raw. Single-letter schemes
// are drive letters, not schemes.
func schemeOf(raw string) (string, bool) {
	i := strings.Index(raw, ":")
	if i < 2 {
		return "", false
	}
	scheme := raw[:i]
	for j, c := range scheme {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case j > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return "", false
		}
	}
	return strings.ToLower(scheme), true
}

// Depth returns the number of archive layers wrapped around the innermost
// location.
func Depth(loc Location) int {
	n := 0
	for {
		a, ok := loc.(Archive)
		if !ok {
			return n
		}
		n++
		loc = a.Inner
	}
}
