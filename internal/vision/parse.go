package vision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/local/rollscan/internal/fields"
	"github.com/local/rollscan/internal/voter"
)

// ErrNoJSON means the response held no array or object.
var ErrNoJSON = errors.New("no json payload in response")

// ResponseSchema is what the model is asked to produce.
func ResponseSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sl_no":              str,
				"id":                 str,
				"name":               str,
				"name_te":            str,
				"relative_name":      str,
				"house_no":           str,
				"age":                str,
				"gender":             str,
				"assembly_name":      str,
				"parliament_name":    str,
				"polling_station_no": str,
				"box": map[string]any{
					"type":        "array",
					"description": "photo box as [ymin, xmin, ymax, xmax] on a 0-1000 grid",
					"items":       map[string]any{"type": "number"},
				},
			},
			"required": []string{"name", "id"},
		},
	}
}

// shapeSchema only checks the outer shape; fields are coerced afterwards.
var shapeSchema = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "object"},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func validator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(shapeSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("shape.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile("shape.json")
	})
	return compiled, compileErr
}

// ParseRecords pulls voter records out of free model text. It accepts a
// JSON array, a single object, or an object wrapping the array under
// "voters", optionally inside code fences or prose.
func ParseRecords(text string) ([]voter.RawRecord, error) {
	text = stripFences(text)
	payload, err := locate(text)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if obj, ok := v.(map[string]any); ok {
		if inner, ok := obj["voters"].([]any); ok {
			v = inner
		} else {
			v = []any{obj}
		}
	}

	schema, err := validator()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	items := v.([]any)
	out := make([]voter.RawRecord, 0, len(items))
	for _, it := range items {
		out = append(out, coerce(it.(map[string]any)))
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// locate returns the outermost bracketed span: the array when '[' comes
// first, otherwise the object.
func locate(s string) (string, error) {
	ob, cb := strings.IndexByte(s, '['), strings.LastIndexByte(s, ']')
	oo, co := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if ob >= 0 && cb > ob && (oo < 0 || ob < oo) {
		return s[ob : cb+1], nil
	}
	if oo >= 0 && co > oo {
		return s[oo : co+1], nil
	}
	return "", ErrNoJSON
}

func coerce(m map[string]any) voter.RawRecord {
	r := voter.RawRecord{
		SlNo:             str(m, "sl_no", "serial_no", "serial"),
		EpicNo:           str(m, "id", "epic_no", "epic"),
		NameEn:           str(m, "name", "name_en"),
		NameTe:           str(m, "name_te"),
		RelativeName:     str(m, "relative_name", "father_name", "relation_name"),
		HouseNo:          str(m, "house_no", "house_number"),
		Age:              str(m, "age"),
		Gender:           str(m, "gender"),
		AssemblyName:     str(m, "assembly_name", "assembly"),
		ParliamentName:   str(m, "parliament_name", "parliament"),
		PollingStationNo: str(m, "polling_station_no", "polling_station"),
	}
	if id := fields.ExtractID(r.EpicNo); id != "" {
		r.EpicNo = id
	}
	for _, k := range []string{"box", "photo_box", "bbox"} {
		if arr, ok := m[k].([]any); ok {
			for _, n := range arr {
				if f, ok := n.(float64); ok {
					r.Box = append(r.Box, f)
				}
			}
			break
		}
	}
	return r
}

// str returns the first present key as a string; numbers are formatted
// without a trailing fraction.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			return strings.TrimSpace(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}
