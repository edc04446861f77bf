package compare

import (
	"bytes"
	"encoding/json"
	"sort"
)

const (
	fieldName       = "entity_name"
	fieldValue      = "entity_value"
	fieldConfidence = "confidence"
	fieldComparison = "comparison"
)

// Entity is one named entity reported by an NER run. Fields other than
// name, value and confidence are kept so they can be written back as-is.
type Entity struct {
	Name       string
	Value      string
	Confidence Confidence

	fields map[string]json.RawMessage
	keyed  bool
}

// NewEntity builds an entity with the given confidence.
func NewEntity(name, value string, confidence Confidence) Entity {
	return Entity{Name: name, Value: value, Confidence: confidence, keyed: name != "" && value != ""}
}

// Key is the composite identity name + "_" + value. It is case-sensitive.
func (e Entity) Key() string {
	return e.Name + "_" + e.Value
}

// Field returns an original JSON field of a decoded entity.
func (e Entity) Field(name string) (json.RawMessage, bool) {
	raw, ok := e.fields[name]
	return raw, ok
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return invalid("each entity must be a JSON object", err)
	}

	nameRaw, hasName := fields[fieldName]
	valueRaw, hasValue := fields[fieldValue]

	*e = Entity{fields: fields}
	if hasName {
		e.Name = renderScalar(nameRaw)
	}
	if hasValue {
		e.Value = renderScalar(valueRaw)
	}
	e.keyed = hasName && hasValue && truthy(nameRaw) && truthy(valueRaw)
	if raw, ok := fields[fieldConfidence]; ok {
		e.Confidence = parseConfidence(raw)
	}
	return nil
}

func (e Entity) MarshalJSON() ([]byte, error) {
	out := e.copyFields()
	return json.Marshal(out)
}

// copyFields returns the entity's fields, synthesising them for entities
// built in code.
func (e Entity) copyFields() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(e.fields)+4)
	for k, v := range e.fields {
		out[k] = v
	}
	if _, ok := out[fieldName]; !ok {
		out[fieldName] = mustString(e.Name)
	}
	if _, ok := out[fieldValue]; !ok {
		out[fieldValue] = mustString(e.Value)
	}
	if _, ok := out[fieldConfidence]; !ok {
		if b, err := e.Confidence.MarshalJSON(); err == nil {
			out[fieldConfidence] = b
		}
	}
	return out
}

// truthy drops null, false, zero, empty-string, empty-list and
// empty-object identifiers.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}:
		return len(x) > 0
	}
	return true
}

func mustString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// EntitySet is the entity list produced by one NER run.
type EntitySet struct {
	Entities []Entity `json:"entities"`
}

// ParseEntitySet decodes an NER payload. A payload without an "entities"
// key is an empty set; a non-object payload or a non-list "entities" value
// is a ValidationError.
func ParseEntitySet(data []byte) (EntitySet, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return EntitySet{}, invalid("input JSON must be an object", err)
	}

	raw, ok := doc["entities"]
	if !ok {
		return EntitySet{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return EntitySet{}, invalid("input JSON must contain an 'entities' list", err)
	}

	set := EntitySet{Entities: make([]Entity, 0, len(items))}
	for _, item := range items {
		var e Entity
		if err := e.UnmarshalJSON(item); err != nil {
			return EntitySet{}, err
		}
		set.Entities = append(set.Entities, e)
	}
	return set, nil
}

// byKey indexes the usable entities of s. A later duplicate replaces an
// earlier one.
func (s EntitySet) byKey() map[string]Entity {
	m := make(map[string]Entity, len(s.Entities))
	for _, e := range s.Entities {
		if !e.keyed {
			continue
		}
		m[e.Key()] = e
	}
	return m
}

// ResultEntity is an entity with its classification.
type ResultEntity struct {
	Name       string
	Value      string
	Comparison Classification
	Confidence Confidence

	source Entity
	match  bool
}

// Field returns an original field of the source entity. Match results
// only carry name and value.
func (r ResultEntity) Field(name string) (json.RawMessage, bool) {
	if r.match {
		return nil, false
	}
	return r.source.Field(name)
}

func (r ResultEntity) MarshalJSON() ([]byte, error) {
	out := r.source.copyFields()
	if r.match {
		out = map[string]json.RawMessage{
			fieldName:  out[fieldName],
			fieldValue: out[fieldValue],
		}
	}
	out[fieldComparison] = mustString(string(r.Comparison))

	conf, err := r.Confidence.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out[fieldConfidence] = conf
	return json.Marshal(out)
}

// Result is the entity-mode comparison result, ordered by composite key.
type Result struct {
	Entities []ResultEntity `json:"entities"`
}

// Mismatches returns the additions and omissions of r.
func (r Result) Mismatches() []ResultEntity {
	var out []ResultEntity
	for _, e := range r.Entities {
		if e.Comparison.Mismatch() {
			out = append(out, e)
		}
	}
	return out
}

// Counts tallies entities per classification.
func (r Result) Counts() map[Classification]int {
	counts := map[Classification]int{Match: 0, Addition: 0, Omission: 0}
	for _, e := range r.Entities {
		counts[e.Comparison]++
	}
	return counts
}

// CompareEntities classifies the union of both sets by composite key.
// Entities only in set1 are additions, entities only in set2 omissions.
// Matches get the fused confidence of both sides.
func CompareEntities(set1, set2 EntitySet) Result {
	m1 := set1.byKey()
	m2 := set2.byKey()

	keys := make([]string, 0, len(m1)+len(m2))
	for k := range m1 {
		keys = append(keys, k)
	}
	for k := range m2 {
		if _, dup := m1[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := Result{Entities: make([]ResultEntity, 0, len(keys))}
	for _, k := range keys {
		e1, ok1 := m1[k]
		e2, ok2 := m2[k]

		switch {
		case ok1 && ok2:
			result.Entities = append(result.Entities, ResultEntity{
				Name:       e1.Name,
				Value:      e1.Value,
				Comparison: Match,
				Confidence: Fuse(e1.Confidence, e2.Confidence),
				source:     e1,
				match:      true,
			})
		case ok1:
			result.Entities = append(result.Entities, passthrough(e1, Addition))
		default:
			result.Entities = append(result.Entities, passthrough(e2, Omission))
		}
	}
	return result
}

func passthrough(e Entity, c Classification) ResultEntity {
	return ResultEntity{
		Name:       e.Name,
		Value:      e.Value,
		Comparison: c,
		Confidence: e.Confidence,
		source:     e,
	}
}

// CompareEntityJSON parses two NER payloads and compares them.
func CompareEntityJSON(doc1, doc2 []byte) (Result, error) {
	set1, err := ParseEntitySet(doc1)
	if err != nil {
		return Result{}, err
	}
	set2, err := ParseEntitySet(doc2)
	if err != nil {
		return Result{}, err
	}
	return CompareEntities(set1, set2), nil
}
