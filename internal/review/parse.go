package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/reviewkit/reviewkit/internal/models"
)

// parsedReview is the JSON body the prompt asks every model to return.
type parsedReview struct {
	Issues      []string      `json:"issues"`
	Suggestions []string      `json:"suggestions"`
	Rating      models.Rating `json:"rating"`
	Reasoning   string        `json:"reasoning"`
}

const rawPreviewLen = 200

// ErrNoJSON is returned by ParseInto when no decodable JSON object is found.
var ErrNoJSON = errors.New("no decodable JSON object in response")

// ParseInto extracts the structured review from a model response into v,
// trying in order: a ```json fenced block, the first '{' to the last '}',
// and the whole trimmed response.
func ParseInto(response string, v any) error {
	if body, ok := fencedJSON(response); ok {
		if err := json.Unmarshal([]byte(body), v); err == nil {
			return nil
		}
	}

	if start := strings.Index(response, "{"); start != -1 {
		if end := strings.LastIndex(response, "}"); end > start {
			if err := json.Unmarshal([]byte(response[start:end+1]), v); err == nil {
				return nil
			}
		}
	}

	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), v); err == nil {
			return nil
		}
	}

	return ErrNoJSON
}

// parseResponse decodes a review body, filling defaults for missing fields.
// When no JSON can be extracted it returns an Error-rated review carrying a
// preview of the raw text.
func parseResponse(response string) parsedReview {
	var p parsedReview
	if err := ParseInto(response, &p); err != nil {
		return parsedReview{
			Issues:      []string{"Could not parse structured response"},
			Suggestions: []string{"Improve response format"},
			Rating:      models.RatingError,
			Reasoning:   fmt.Sprintf("Parsing failed. Raw response: %s", preview(response)),
		}
	}
	if p.Rating == "" {
		p.Rating = "Unknown"
	}
	if p.Reasoning == "" {
		p.Reasoning = "No reasoning provided"
	}
	return p
}

// fencedJSON returns the content of the first ```json code fence.
func fencedJSON(response string) (string, bool) {
	start := strings.Index(response, "```json")
	if start == -1 {
		return "", false
	}
	start += len("```json")
	end := strings.Index(response[start:], "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(response[start : start+end]), true
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > rawPreviewLen {
		return s[:rawPreviewLen] + "..."
	}
	return s
}
