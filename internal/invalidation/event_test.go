package invalidation

import (
	"testing"
	"time"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

const pkey = "https://www.dov.vlaanderen.be/data/boring/1930-120730"

func TestEvent_Validate_HappyPath(t *testing.T) {
	for _, op := range []string{"insert", "update", "delete"} {
		ev := Event{Version: 1, Op: op, Typename: "dov-pub:Boringen", TS: mustTS(), Pkeys: []string{pkey}}
		if err := ev.Validate(); err != nil {
			t.Fatalf("%s: unexpected: %v", op, err)
		}
	}
}

func TestEvent_Validate_Rejects(t *testing.T) {
	base := Event{Version: 1, Op: "update", TS: mustTS(), Pkeys: []string{pkey}}
	tests := map[string]func(e *Event){
		"version":      func(e *Event) { e.Version = 2 },
		"op":           func(e *Event) { e.Op = "merge" },
		"no ts":        func(e *Event) { e.TS = time.Time{} },
		"no pkeys":     func(e *Event) { e.Pkeys = nil },
		"relative":     func(e *Event) { e.Pkeys = []string{"/data/boring/1"} },
		"ftp":          func(e *Event) { e.Pkeys = []string{"ftp://www.dov.vlaanderen.be/data/boring/1"} },
		"one bad pkey": func(e *Event) { e.Pkeys = []string{pkey, "boring 1"} },
	}
	for name, mutate := range tests {
		ev := base
		ev.Pkeys = append([]string(nil), base.Pkeys...)
		mutate(&ev)
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
