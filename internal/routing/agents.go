package routing

import (
	"fmt"
	"strconv"
	"strings"
)

// Agent is one dialable endpoint in the agent pool.
type Agent struct {
	// URI is a switch dial target.
	// Examples:
	// - user/1001
	// - sofia/gateway/pstn/+15551234567
	URI string

	// Weight must be > 0. Higher weights receive proportionally more calls.
	Weight int
}

// ParsePool parses the configured agent pool. Entries are comma separated
// dial URIs, each with an optional trailing @N selection weight:
//
//	user/1001@3,user/1002,sofia/gateway/pstn/+15551234567@2
//
// A @ not followed by a bare integer stays part of the URI, so
// sofia/external/agent@pbx.example.com parses as a weight-1 agent.
func ParsePool(s string) ([]Agent, error) {
	var pool []Agent
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		a := Agent{URI: entry, Weight: 1}
		if i := strings.LastIndex(entry, "@"); i > 0 {
			if w, err := strconv.Atoi(entry[i+1:]); err == nil {
				if w <= 0 {
					return nil, fmt.Errorf("routing: agent %q: weight must be positive", entry[:i])
				}
				a.URI = entry[:i]
				a.Weight = w
			}
		}
		pool = append(pool, a)
	}
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}
	return pool, nil
}
