// Package invalidation defines the object update events that drop cached
// object documents.
package invalidation

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Event announces that the documents of Pkeys changed upstream.
type Event struct {
	Version  int       `json:"version"`
	Op       string    `json:"op"`
	Typename string    `json:"typename,omitempty"`
	Pkeys    []string  `json:"pkeys"`
	TS       time.Time `json:"ts"`
	Source   string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if len(e.Pkeys) == 0 {
		return fmt.Errorf("at least one pkey is required")
	}
	for _, pk := range e.Pkeys {
		u, err := url.Parse(strings.TrimSpace(pk))
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("pkey %q is not an absolute url", pk)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("pkey %q: scheme must be http or https", pk)
		}
	}
	return nil
}
