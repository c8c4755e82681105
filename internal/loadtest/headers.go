package loadtest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// Entry types recorded for profile findings, matching the profiler's labels.
const (
	TypeNPlusOne = "N+1 Query"
	TypeSlow     = "Slow Query"
)

// HeaderFinding is one finding announced in a response.
type HeaderFinding struct {
	Type  string
	Rank  int
	UUID  string
	Stack string
}

// ParseProfileHeaders collects the <prefix>-Nplus1-<i>-Uuid / -Stack and
// <prefix>-Slow-<i>-Uuid / -Stack headers. Matching ignores case. Findings
// are ordered N+1 first, then by rank.
func ParseProfileHeaders(h http.Header, prefix string) []HeaderFinding {
	prefix = strings.ToLower(strings.TrimRight(prefix, "-")) + "-"
	byKey := map[string]*HeaderFinding{}
	for name, values := range h {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, prefix) || len(values) == 0 {
			continue
		}
		parts := strings.Split(lower[len(prefix):], "-")
		if len(parts) != 3 {
			continue
		}
		var typ string
		switch parts[0] {
		case "nplus1":
			typ = TypeNPlusOne
		case "slow":
			typ = TypeSlow
		default:
			continue
		}
		rank, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		key := parts[0] + "-" + parts[1]
		f := byKey[key]
		if f == nil {
			f = &HeaderFinding{Type: typ, Rank: rank}
			byKey[key] = f
		}
		switch parts[2] {
		case "uuid":
			f.UUID = values[0]
		case "stack":
			f.Stack = values[0]
		}
	}
	out := make([]HeaderFinding, 0, len(byKey))
	for _, f := range byKey {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type == TypeNPlusOne
		}
		return out[i].Rank < out[j].Rank
	})
	return out
}
