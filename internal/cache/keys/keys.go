// Package keys maps permanent keys to cache locations.
package keys

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Entry identifies a cached object: its family and its id within it.
type Entry struct {
	Family string
	ID     string
}

// Parse splits a permanent key of the form <base>/data/<family>/<id>.
// Query strings and a trailing slash are ignored.
func Parse(pkey string) (Entry, error) {
	u, err := url.Parse(strings.TrimSpace(pkey))
	if err != nil {
		return Entry{}, fmt.Errorf("permanent key %q: %w", pkey, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(parts) - 3; i >= 0; i-- {
		if parts[i] == "data" && parts[i+1] != "" && parts[i+2] != "" {
			return Entry{
				Family: sanitize(parts[i+1]),
				ID:     sanitize(strings.Join(parts[i+2:], "/")),
			}, nil
		}
	}
	return Entry{}, fmt.Errorf("permanent key %q: no /data/<family>/<id> path", pkey)
}

// Redis returns the redis key of e under prefix.
func Redis(prefix string, e Entry) string {
	return fmt.Sprintf("%s:%s:%s", prefix, e.Family, e.ID)
}

// sanitize keeps ids usable as file names. Anything outside [A-Za-z0-9._-]
// is replaced and a hash suffix keeps distinct inputs distinct.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	changed := false
	var prev rune
	for _, r := range s {
		out := r
		if !isAlphaNum(r) && r != '_' && r != '-' && r != '.' {
			out = '-'
			changed = true
		}
		if out == '-' && prev == '-' {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	res := b.String()
	if res == "" || res == "." || res == ".." {
		res = "_"
		changed = true
	}
	const maxLen = 120
	if len(res) > maxLen {
		res = res[:maxLen]
		changed = true
	}
	if changed {
		res = fmt.Sprintf("%s-%016x", res, xxhash.Sum64String(s))
	}
	return res
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
