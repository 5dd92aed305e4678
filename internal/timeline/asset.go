package timeline

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// AssetKind discriminates the shapes an asset reference can take.
type AssetKind int

const (
	// AssetNone is the zero reference.
	AssetNone AssetKind = iota
	// AssetURL points at a network location.
	AssetURL
	// AssetInlineBytes carries raw media bytes that exist only in memory.
	AssetInlineBytes
	// AssetStoredPath points at a file on the local filesystem or asset store.
	AssetStoredPath
)

// AssetRef is a tagged reference to source media. Exactly one variant is
// populated; Normalize collapses any variant to its canonical string form.
type AssetRef struct {
	kind     AssetKind
	location string // URL or stored path
	data     []byte
	mime     string
}

// URLRef builds a network asset reference.
func URLRef(u string) AssetRef {
	return AssetRef{kind: AssetURL, location: u}
}

// InlineRef builds an in-memory asset reference.
func InlineRef(data []byte, mime string) AssetRef {
	return AssetRef{kind: AssetInlineBytes, data: data, mime: mime}
}

// StoredRef builds a stored-path asset reference.
func StoredRef(path string) AssetRef {
	return AssetRef{kind: AssetStoredPath, location: path}
}

// ParseRef turns a canonical string back into a tagged reference.
func ParseRef(s string) AssetRef {
	switch {
	case s == "":
		return AssetRef{}
	case strings.HasPrefix(s, "data:"):
		mime, data, err := decodeDataURI(s)
		if err != nil {
			return AssetRef{}
		}
		return InlineRef(data, mime)
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return URLRef(s)
	default:
		return StoredRef(s)
	}
}

// Kind reports which variant this reference holds.
func (r AssetRef) Kind() AssetKind { return r.kind }

// IsZero reports whether the reference is empty.
func (r AssetRef) IsZero() bool { return r.kind == AssetNone }

// Location returns the URL or stored path; empty for inline bytes.
func (r AssetRef) Location() string { return r.location }

// Inline returns the raw bytes and mime type for inline references.
func (r AssetRef) Inline() ([]byte, string) { return r.data, r.mime }

// Normalize returns the canonical transport string: the URL, the stored
// path, or a data URI for inline bytes.
func (r AssetRef) Normalize() string {
	switch r.kind {
	case AssetURL, AssetStoredPath:
		return r.location
	case AssetInlineBytes:
		return fmt.Sprintf("data:%s;base64,%s", r.mime, base64.StdEncoding.EncodeToString(r.data))
	default:
		return ""
	}
}

// Identity returns a stable cache key for the referenced media. Inline
// bytes hash their content so two identical buffers share a decode.
func (r AssetRef) Identity() string {
	switch r.kind {
	case AssetURL:
		return "url:" + r.location
	case AssetStoredPath:
		return "path:" + r.location
	case AssetInlineBytes:
		sum := sha256.Sum256(r.data)
		return "inline:" + hex.EncodeToString(sum[:8])
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler via the canonical form.
func (r AssetRef) MarshalText() ([]byte, error) {
	return []byte(r.Normalize()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *AssetRef) UnmarshalText(text []byte) error {
	*r = ParseRef(string(text))
	return nil
}

func decodeDataURI(s string) (mime string, data []byte, err error) {
	rest := strings.TrimPrefix(s, "data:")
	sep := strings.Index(rest, ",")
	if sep < 0 {
		return "", nil, fmt.Errorf("malformed data URI")
	}

	meta, payload := rest[:sep], rest[sep+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	mime = strings.TrimSuffix(meta, ";base64")

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding data URI payload: %w", err)
	}
	return mime, data, nil
}
