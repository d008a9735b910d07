package classifier

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/xaenox/interview-ranker/internal/models"
)

// NormalizeIDs coerces raw model output into bank IDs. Entries may be JSON
// numbers or numeric strings; anything unparsable, non-integral, repeated or
// absent from the bank is dropped. Order is preserved.
func NormalizeIDs(raw []json.RawMessage, bank []models.Question) []int {
	known := make(map[int]struct{}, len(bank))
	for _, q := range bank {
		known[q.ID] = struct{}{}
	}

	ids := make([]int, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for _, r := range raw {
		id, ok := parseID(r)
		if !ok {
			continue
		}
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func parseID(r json.RawMessage) (int, bool) {
	var v interface{}
	if err := json.Unmarshal(r, &v); err != nil {
		return 0, false
	}

	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// flexFloat decodes a JSON number or numeric string; anything else is zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		*f = 0
		return nil
	}
	switch t := v.(type) {
	case float64:
		*f = flexFloat(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(parsed) {
			*f = 0
			return nil
		}
		*f = flexFloat(parsed)
	default:
		*f = 0
	}
	return nil
}
