package parser

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ResolveURL resolves ref against base. Absolute http(s) references are
// only normalized. Relative references are joined to the directory of base
// with RFC 3986 semantics, so the query of base is never carried over to a
// reference that has a path of its own.
//
// A '%' that does not start an escape is taken literally and sent as %25.
func ResolveURL(base, ref string) (string, error) {
	r, err := url.Parse(escapeStrayPercent(strings.TrimSpace(ref)))
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}

	switch strings.ToLower(r.Scheme) {
	case "http", "https":
		return normalize(r), nil
	case "":
	default:
		// skd://, data: and friends are opaque.
		return r.String(), nil
	}

	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	if !b.IsAbs() {
		return "", fmt.Errorf("base %q is not absolute", base)
	}
	return normalize(b.ResolveReference(r)), nil
}

// NormalizeURL collapses "." and ".." segments and duplicate slashes and
// drops the fragment. It is idempotent.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}
	return normalize(u), nil
}

func normalize(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	b.WriteString(cleaned)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String()
}

// resolveBase walks a BaseURL chain. Only the first BaseURL of each level
// is honoured.
func resolveBase(parent *url.URL, bases []string) *url.URL {
	if len(bases) == 0 {
		return parent
	}
	ref := strings.TrimSpace(bases[0])
	if ref == "" {
		return parent
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return parent
	}
	return parent.ResolveReference(rel)
}

// escapeStrayPercent rewrites every '%' not followed by two hex digits as
// "%25". Packagers write such names verbatim into playlists.
func escapeStrayPercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && !(i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
