package apps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Values are submitted form values. Key order is kept as sent, since some forms
// (the report editor) render sections in the order the user saw them.
type Values struct {
	keys []string
	m    map[string]json.RawMessage
}

func NewValues(pairs ...any) Values {
	var v Values
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		raw, _ := json.Marshal(pairs[i+1])
		v.set(key, raw)
	}
	return v
}

func (v *Values) set(key string, raw json.RawMessage) {
	if v.m == nil {
		v.m = make(map[string]json.RawMessage)
	}
	if _, ok := v.m[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.m[key] = raw
}

func (v Values) Keys() []string {
	return append([]string(nil), v.keys...)
}

func (v Values) Len() int {
	return len(v.keys)
}

// String returns a text value, or the value of a select option. Null and missing values
// are "".
func (v Values) String(key string) string {
	raw, ok := v.m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var opt SelectOption
	if err := json.Unmarshal(raw, &opt); err == nil && opt.Value != "" {
		return opt.Value
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Int parses a numeric value, which text fields of subtype number still send as strings.
func (v Values) Int(key string) (int, bool, error) {
	s := v.String(key)
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s must be a number, got %q", key, s)
	}
	return n, true, nil
}

func (v *Values) UnmarshalJSON(data []byte) error {
	*v = Values{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("values must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("value of %s: %w", key, err)
		}
		v.set(key, raw)
	}
	_, err = dec.Token()
	return err
}

func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v.m[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
