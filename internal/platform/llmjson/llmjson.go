// Package llmjson decodes JSON objects out of free-text model responses.
//
// Responses are untrusted: they may be wrapped in code fences, surrounded by
// prose, or not contain JSON at all. Every failure is reported as a *ParseError.
package llmjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseError reports a response that could not be turned into the requested value.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse model output: %s: %v", e.Reason, e.Err)
	}
	return "parse model output: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode extracts the first JSON object from raw and unmarshals it into v.
func Decode(raw string, v any) error {
	body, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &ParseError{Reason: "invalid json", Raw: raw, Err: err}
	}
	return nil
}

// Extract returns the JSON object text embedded in raw.
func Extract(raw string) (string, error) {
	content := StripFences(raw)
	if content == "" {
		return "", &ParseError{Reason: "empty response", Raw: raw}
	}
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return "", &ParseError{Reason: "no json object", Raw: raw}
	}
	return content[start : end+1], nil
}

// StripFences removes a surrounding ```json ... ``` (or bare ```) block.
func StripFences(raw string) string {
	content := strings.TrimSpace(raw)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if nl := strings.IndexByte(content, '\n'); nl >= 0 && !strings.ContainsAny(content[:nl], "{[\"") {
			content = content[nl+1:]
		} else {
			content = strings.TrimPrefix(content, "json")
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// Number accepts a JSON number or a numeric string ("0.85").
type Number struct {
	Value float64
	Set   bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
		if err != nil {
			return fmt.Errorf("number %q: %w", s, err)
		}
		if strings.HasSuffix(strings.TrimSpace(s), "%") {
			f /= 100
		}
		n.Value, n.Set = f, true
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	n.Value, n.Set = f, true
	return nil
}

// Or returns the decoded value, or fallback when the field was absent.
func (n Number) Or(fallback float64) float64 {
	if !n.Set {
		return fallback
	}
	return n.Value
}

// Bool accepts true/false or their string forms ("yes", "true").
type Bool bool

func (b *Bool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "1":
			*b = true
		case "false", "no", "n", "0", "":
			*b = false
		default:
			return fmt.Errorf("bool %q: unrecognized", s)
		}
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = Bool(v)
	return nil
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
