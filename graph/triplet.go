package graph

import (
	"encoding/json"
	"strings"
)

// Fallback labels applied at merge time to fields that are empty after
// trimming.
const (
	UnknownEntity   = "Unknown"
	UnknownRelation = "UNKNOWN_RELATION"
)

// Triplet is one subject-predicate-object fact. Triplets carry no identity
// beyond their three fields; duplicates are allowed until merge.
type Triplet struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// UnmarshalJSON accepts any JSON scalar for the three fields, since models
// sometimes emit years or counts as bare numbers. Missing fields and nulls
// decode to "".
func (t *Triplet) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Subject = scalarString(raw["subject"])
	t.Predicate = scalarString(raw["predicate"])
	t.Object = scalarString(raw["object"])
	return nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Normalized returns t with whitespace trimmed and the fallback labels
// substituted for empty fields.
func (t Triplet) Normalized() Triplet {
	out := Triplet{
		Subject:   strings.TrimSpace(t.Subject),
		Predicate: strings.TrimSpace(t.Predicate),
		Object:    strings.TrimSpace(t.Object),
	}
	if out.Subject == "" {
		out.Subject = UnknownEntity
	}
	if out.Predicate == "" {
		out.Predicate = UnknownRelation
	}
	if out.Object == "" {
		out.Object = UnknownEntity
	}
	return out
}
