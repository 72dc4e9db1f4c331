package keys

import (
	"regexp"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		pkey string
		want Entry
	}{
		{"https://www.dov.vlaanderen.be/data/boring/1930-120730", Entry{"boring", "1930-120730"}},
		{"https://www.dov.vlaanderen.be/data/boring/1930-120730/", Entry{"boring", "1930-120730"}},
		{"http://localhost:8080/dov/data/sondering/2019-001?x=1", Entry{"sondering", "2019-001"}},
		{"https://www.dov.vlaanderen.be/data/interpretatie/2016-290843", Entry{"interpretatie", "2016-290843"}},
	}
	for _, c := range cases {
		got, err := Parse(c.pkey)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.pkey, err)
		}
		if got != c.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", c.pkey, got, c.want)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, pkey := range []string{"", "https://www.dov.vlaanderen.be/", "https://x/data/boring", "::bad"} {
		if _, err := Parse(pkey); err == nil {
			t.Fatalf("Parse(%q) expected error", pkey)
		}
	}
}

func TestSanitize_SafeAndDistinct(t *testing.T) {
	a, _ := Parse("https://x/data/filter/a b/1")
	b, _ := Parse("https://x/data/filter/a_b/1")
	c, _ := Parse("https://x/data/filter/a%20b/1")
	ids := []string{a.ID, b.ID, c.ID}
	safe := regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	for _, id := range ids {
		if !safe.MatchString(id) {
			t.Fatalf("unsafe id %q", id)
		}
	}
	if a.ID == b.ID {
		t.Fatalf("distinct ids collapsed: %q", a.ID)
	}
	if !strings.HasPrefix(a.ID, "a-b-1-") {
		t.Fatalf("unexpected sanitized id %q", a.ID)
	}
	long, _ := Parse("https://x/data/boring/" + strings.Repeat("z", 300))
	if len(long.ID) > 140 {
		t.Fatalf("id not truncated: %d", len(long.ID))
	}
}

func TestRedis(t *testing.T) {
	if got := Redis("dov", Entry{"boring", "1"}); got != "dov:boring:1" {
		t.Fatalf("Redis = %q", got)
	}
}
