package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeySeparator joins the operation name and each argument segment.
const KeySeparator = ":"

// defaultKeySerializer produces keys like "habit_get_by_id:12" or
// "habit_bulk_checks:3:7:12:2026-01-05:2026-02-01". Day arguments collapse to
// their calendar date and id slices are sorted and deduplicated, so two calls
// that ask for the same data always share a key.
type defaultKeySerializer struct{}

// NewKeySerializer returns the serializer used throughout the engine.
func NewKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

func (s *defaultKeySerializer) SerializeKey(op string, args ...any) string {
	if len(args) == 0 {
		return op
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, op)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uuid.UUID:
		return val.String()
	case time.Time:
		return val.UTC().Format("2006-01-02")
	case []int64:
		return serializeIDs(val)
	case *int64:
		if val == nil {
			return "nil"
		}
		return strconv.FormatInt(*val, 10)
	case *string:
		if val == nil {
			return "nil"
		}
		return *val
	case *time.Time:
		if val == nil {
			return "nil"
		}
		return val.UTC().Format("2006-01-02")
	default:
		return s.fallback(v)
	}
}

// serializeIDs normalizes an id slice so that key identity does not depend on
// caller ordering or duplicates.
func serializeIDs(ids []int64) string {
	if len(ids) == 0 {
		return "none"
	}
	sorted := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, KeySeparator)
}

func (s *defaultKeySerializer) fallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(data)
}
