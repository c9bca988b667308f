package catalog

import (
	"bytes"
	"encoding/json"
	"math"
)

// DecodePets turns a findByStatus response body into validated pets.
// It never fails: a body that is not a JSON array yields no pets, and entries
// without an integral numeric id are skipped. dropped counts skipped entries.
func DecodePets(body []byte) (pets []Pet, dropped int) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return []Pet{}, 0
	}

	items, ok := raw.([]any)
	if !ok {
		return []Pet{}, 0
	}

	pets = make([]Pet, 0, len(items))
	for _, item := range items {
		pet, ok := decodePet(item)
		if !ok {
			dropped++
			continue
		}
		pets = append(pets, pet)
	}
	return pets, dropped
}

func decodePet(item any) (Pet, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Pet{}, false
	}

	id, ok := integer(obj["id"])
	if !ok {
		return Pet{}, false
	}

	return Pet{
		ID:        id,
		Name:      optString(obj["name"]),
		Category:  decodeCategory(obj["category"]),
		PhotoURLs: decodeStrings(obj["photoUrls"]),
		Tags:      decodeTags(obj["tags"]),
		Status:    decodeStatus(obj["status"]),
	}, true
}

func decodeCategory(v any) *Category {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &Category{ID: optInteger(obj["id"]), Name: optString(obj["name"])}
}

func decodeTags(v any) []Tag {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	tags := make([]Tag, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		tags = append(tags, Tag{ID: optInteger(obj["id"]), Name: optString(obj["name"])})
	}
	return tags
}

func decodeStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func decodeStatus(v any) Status {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	if status := Status(s); status.Valid() {
		return status
	}
	return ""
}

// integer accepts JSON numbers with no fractional part that fit in int64.
func integer(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}

	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func optInteger(v any) *int64 {
	i, ok := integer(v)
	if !ok {
		return nil
	}
	return &i
}

func optString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
