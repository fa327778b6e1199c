package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var jsonFencePattern = regexp.MustCompile("(?is)```json\\s*(.*?)```")

var ErrNoJSONObject = errors.New("llm: no json object in output")

// ExtractJSONObject returns the outermost {...} span of a model reply,
// preferring the body of a ```json fence when one is present.
func ExtractJSONObject(text string) (string, error) {
	raw := strings.TrimSpace(text)
	if m := jsonFencePattern.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSONObject
	}
	return raw[start : end+1], nil
}

// DecodeObject extracts the JSON object from text and decodes it into out.
// Malformed JSON gets one pass through jsonrepair before giving up.
func DecodeObject(text string, out any) error {
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return err
	}
	decodeErr := json.Unmarshal([]byte(raw), out)
	if decodeErr == nil {
		return nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return fmt.Errorf("decode model json: %w", decodeErr)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("decode repaired model json: %w", err)
	}
	return nil
}
