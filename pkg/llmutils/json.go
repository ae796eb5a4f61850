package llmutils

import (
	"bytes"
	"encoding/json"

	"sigs.k8s.io/yaml"
)

var fence = []byte("```")

// CleanJSON returns the JSON value in a model reply, dropping the prose
// and code fences around it, as in "Here you go: ```json {...} ```".
// Text without braces or brackets is returned as is.
func CleanJSON(bs []byte) []byte {
	if start := bytes.IndexAny(bs, "{["); start > 0 {
		bs = bs[start:]
	}
	if end := bytes.LastIndexAny(bs, "}]"); end >= 0 {
		bs = bs[:end+1]
	}
	return bs
}

// BytesTrimBackticks returns the content of a fenced code block without
// the fences and the language tag. Text without a fence is returned as is.
func BytesTrimBackticks(bs []byte) []byte {
	_, body, ok := bytes.Cut(bs, fence)
	if !ok {
		return bs
	}
	// the tag runs to the end of the fence line, unless the content starts there
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 && bytes.IndexAny(body[:nl], "{[") < 0 {
		body = body[nl+1:]
	}
	if end := bytes.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}
	return bytes.TrimSpace(body)
}

// ToJSONIndent returns the tab indented JSON of val, or an empty string
// if val cannot be encoded.
func ToJSONIndent(val any) string {
	js, err := json.MarshalIndent(val, "", "\t")
	if err != nil {
		return ""
	}
	return string(js)
}

// ToYAML returns the YAML of val keyed by its json tags, or an empty string
// if val cannot be encoded.
func ToYAML(val any) string {
	y, err := yaml.Marshal(val)
	if err != nil {
		return ""
	}
	return string(y)
}
