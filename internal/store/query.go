package store

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseQuery parses the list-route query-string mini-grammar:
//
//	?filters.cnStatus=new&filters.created=> 2025-01-01 AND < 2025-06-01
//	?sort=created desc&page=2&limit=50&lastId=abc
//	?tags[]=a&tags[]=b  (bracket arrays)
//
// page/limit parse as ints, "true"/"false" as bools, everything else
// passes through as strings. limit=0 means "no limit".
func ParseQuery(values url.Values) QueryOptions {
	q := QueryOptions{Filters: map[string]interface{}{}}

	for key, raw := range values {
		isArray := strings.HasSuffix(key, "[]")
		key = strings.TrimSuffix(key, "[]")
		var value interface{}
		if isArray || len(raw) > 1 {
			arr := make([]interface{}, len(raw))
			for i, s := range raw {
				arr[i] = parseScalar(s)
			}
			value = arr
		} else if len(raw) == 1 {
			value = parseScalar(raw[0])
		} else {
			continue
		}

		switch {
		case strings.HasPrefix(key, "filters."):
			q.Filters[strings.TrimPrefix(key, "filters.")] = value
		case key == "sort":
			q.Sort, _ = value.(string)
		case key == "page":
			if n, ok := value.(int); ok {
				q.Page = n
			}
		case key == "limit":
			if n, ok := value.(int); ok {
				if n == 0 {
					q.Limit = -1
				} else {
					q.Limit = n
				}
			}
		case key == "lastId":
			q.LastID, _ = value.(string)
		case key == "showPrivate":
			q.ShowPrivate, _ = value.(bool)
		case key == "parentDbPath":
			q.ParentDBPath, _ = value.(string)
		}
	}

	return q
}

func parseScalar(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

// Filter conditions. A filter value is either a plain value (equality) or
// a range expression like "> 5" or ">= 2025-01-01 AND < 2025-06-01".
type cond struct {
	op    string // "eq", "gt", "gte", "lt", "lte"
	value interface{}
}

var rangePattern = regexp.MustCompile(`^(>=|<=|>|<)\s*(.+)$`)

func filterConds(value interface{}) []cond {
	s, ok := value.(string)
	if !ok || !rangePattern.MatchString(strings.TrimSpace(s)) {
		return []cond{{op: "eq", value: value}}
	}

	conds := []cond{}
	for _, part := range strings.Split(s, " AND ") {
		m := rangePattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			continue
		}
		op := map[string]string{">": "gt", ">=": "gte", "<": "lt", "<=": "lte"}[m[1]]
		conds = append(conds, cond{op: op, value: coerceCompareValue(strings.TrimSpace(m[2]))})
	}
	if len(conds) == 0 {
		return []cond{{op: "eq", value: value}}
	}
	return conds
}

func coerceCompareValue(s string) interface{} {
	if isoDatePattern.MatchString(s) {
		if t, err := parseWireTime(s); err == nil {
			return t
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// compare reports a < b (-1), a == b (0) or a > b (1) for the value kinds
// filters operate on. Mismatched kinds never match (returned ok=false).
func compare(a, b interface{}) (int, bool) {
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}
