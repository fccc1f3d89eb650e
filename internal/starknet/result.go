package starknet

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NormalizeResult flattens a call result into felt strings. Providers have
// returned a bare array as well as objects carrying the list under
// "result", "response" or "calldata"; the first array found wins. Anything
// else yields an empty list.
func NormalizeResult(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []string{}
	}

	if list, ok := decodeList(raw); ok {
		return list
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return []string{}
	}
	for _, field := range []string{"result", "response", "calldata"} {
		if v, ok := obj[field]; ok {
			if list, ok := decodeList(v); ok {
				return list
			}
		}
	}
	return []string{}
}

func decodeList(raw json.RawMessage) ([]string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case json.Number:
			out = append(out, v.String())
		case nil:
			out = append(out, "null")
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out, true
}
