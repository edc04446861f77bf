package compare

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Classification labels one compared item or entity.
type Classification string

const (
	Match    Classification = "match"
	Addition Classification = "addition" // only in the first input
	Omission Classification = "omission" // only in the second input
)

// Mismatch reports whether c is an addition or an omission.
func (c Classification) Mismatch() bool {
	return c == Addition || c == Omission
}

// CategoryResult maps a category name to its item classifications.
type CategoryResult map[string]map[string]Classification

// CompareCategory classifies every item of list1 and list2 by
// case-insensitive presence. Keys keep the casing of each occurrence, so
// "A" and "a" both appear when the lists differ only in case. Two empty
// lists yield {"": "match"}.
func CompareCategory(list1, list2 []string) map[string]Classification {
	if len(list1) == 0 && len(list2) == 0 {
		return map[string]Classification{"": Match}
	}

	in1 := lowerSet(list1)
	in2 := lowerSet(list2)

	result := make(map[string]Classification, len(list1)+len(list2))
	for _, item := range append(append([]string(nil), list1...), list2...) {
		key := strings.ToLower(item)
		_, ok1 := in1[key]
		_, ok2 := in2[key]
		switch {
		case ok1 && ok2:
			result[item] = Match
		case ok1:
			result[item] = Addition
		default:
			result[item] = Omission
		}
	}
	return result
}

func lowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = struct{}{}
	}
	return set
}

// CompareDocuments compares two category documents, objects mapping a
// category name to a list of items. A category missing on one side is
// compared against an empty list.
func CompareDocuments(doc1, doc2 []byte) (CategoryResult, error) {
	cats1, err := parseCategories(doc1)
	if err != nil {
		return nil, err
	}
	cats2, err := parseCategories(doc2)
	if err != nil {
		return nil, err
	}

	result := make(CategoryResult, len(cats1)+len(cats2))
	for name := range cats1 {
		result[name] = CompareCategory(cats1[name], cats2[name])
	}
	for name := range cats2 {
		if _, done := result[name]; !done {
			result[name] = CompareCategory(nil, cats2[name])
		}
	}
	return result, nil
}

func parseCategories(data []byte) (map[string][]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, invalid("input JSON must be an object of category lists", err)
	}

	cats := make(map[string][]string, len(raw))
	for name, value := range raw {
		var items []json.RawMessage
		if err := json.Unmarshal(value, &items); err != nil {
			return nil, invalid("category "+name+" must be a list", err)
		}
		rendered := make([]string, 0, len(items))
		for _, item := range items {
			rendered = append(rendered, renderScalar(item))
		}
		cats[name] = rendered
	}
	return cats, nil
}

// renderScalar turns a JSON value into its display string: strings are
// unquoted, everything else keeps its compact JSON text.
func renderScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
