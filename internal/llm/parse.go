package llm

import (
	"errors"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// fencedJSON extracts an object from a markdown code block. \x60 is a backtick.
var fencedJSON = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*({.*})\\s*\x60\x60\x60")

var errEmptyJSON = errors.New("no JSON in model response")

// ExtractJSONObject returns the JSON object embedded in a model response:
// the body of a ```json fence, or the span from the first "{" to the last "}".
func ExtractJSONObject(response string) string {
	response = strings.TrimSpace(response)
	if m := fencedJSON.FindStringSubmatch(response); len(m) > 1 {
		return m[1]
	}
	if strings.HasPrefix(response, "{") {
		return response
	}
	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first >= 0 && last > first {
		return response[first : last+1]
	}
	if first >= 0 {
		// truncated output, let the repair step close it
		return response[first:]
	}
	return response
}

// ParseJSON decodes a possibly malformed JSON object from model output into v.
// It tries the extracted text as-is, then with a closing brace appended, then
// after jsonrepair. The first error is returned when every attempt fails.
func ParseJSON(response string, v interface{}) error {
	text := ExtractJSONObject(response)
	if text == "" {
		return errEmptyJSON
	}
	err := json.UnmarshalFromString(text, v)
	if err == nil {
		return nil
	}
	originalErr := err

	if err := json.UnmarshalFromString(text+"}", v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return originalErr
	}
	if err := json.UnmarshalFromString(repaired, v); err == nil {
		return nil
	}
	return originalErr
}
