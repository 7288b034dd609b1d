package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/askdb/askdb/pkg/jsonutil"
)

// ErrNoStructuredResult is returned when no extraction strategy yields a result.
var ErrNoStructuredResult = errors.New("no structured result in response")

// thinkTagPattern matches <think>...</think> tags that may appear at the start of LLM responses.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// fencedBlockPattern matches ```lang ... ``` blocks; group 1 is the language tag.
var fencedBlockPattern = regexp.MustCompile("(?s)```([A-Za-z0-9_-]*)[^\\n`]*\\n?(.*?)```")

func stripThinking(response string) string {
	return thinkTagPattern.ReplaceAllString(response, "")
}

// ExtractJSON extracts JSON content from an LLM response that may contain
// <think> tags, markdown code blocks, or other formatting.
func ExtractJSON(response string) (string, error) {
	cleaned := stripThinking(response)

	// Find the first occurrence of { or [ to determine JSON type
	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if jsonStr, ok := extractBalancedJSON(cleaned, '{', '}'); ok {
			if json.Valid([]byte(jsonStr)) {
				return jsonStr, nil
			}
		}
	}

	if arrStart >= 0 {
		if jsonStr, ok := extractBalancedJSON(cleaned, '[', ']'); ok {
			if json.Valid([]byte(jsonStr)) {
				return jsonStr, nil
			}
		}
	}

	if body, ok := fencedBlock(cleaned, "json"); ok && json.Valid([]byte(body)) {
		return body, nil
	}

	// Last resort: check if the entire cleaned response is valid JSON
	trimmed := strings.TrimSpace(cleaned)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// extractBalancedJSON finds the first balanced JSON structure starting with openChar.
// It handles nested structures by counting bracket depth.
func extractBalancedJSON(s string, openChar, closeChar byte) (string, bool) {
	start := strings.IndexByte(s, openChar)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// fencedBlock returns the trimmed body of the first non-empty fenced block tagged lang.
func fencedBlock(text, lang string) (string, bool) {
	for _, m := range fencedBlockPattern.FindAllStringSubmatch(text, -1) {
		if !strings.EqualFold(m[1], lang) {
			continue
		}
		if body := strings.TrimSpace(m[2]); body != "" {
			return body, true
		}
	}
	return "", false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into the target.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}

// GenerationResult is the structured answer to a SQL generation prompt.
type GenerationResult struct {
	SQL                   string
	NeedsClarification    bool
	ClarificationQuestion string
	// Strategy names the extractor that produced the result.
	Strategy string
}

// objectExtractor finds a JSON object in free-form text.
type objectExtractor struct {
	name    string
	extract func(text string) (string, bool)
}

// generationExtractors are tried in order; the first one yielding a JSON object wins.
var generationExtractors = []objectExtractor{
	{name: "brace_span", extract: braceSpan},
	{name: "balanced_object", extract: func(text string) (string, bool) {
		return extractBalancedJSON(text, '{', '}')
	}},
	{name: "fenced_json", extract: func(text string) (string, bool) {
		body, ok := fencedBlock(text, "json")
		if !ok {
			return "", false
		}
		if span, ok := braceSpan(body); ok {
			return span, true
		}
		return body, true
	}},
}

// braceSpan returns the text from the first '{' to the last '}'.
func braceSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseGenerationResult extracts {"sql", "needs_clarification", "clarification_question"}
// from a backend response. Strategies in order: first '{' to last '}', first balanced
// object, a ```json block, then a ```sql block taken as the SQL itself. When every
// strategy fails it returns the zero GenerationResult and ErrNoStructuredResult.
func ParseGenerationResult(response string) (GenerationResult, error) {
	cleaned := stripThinking(response)
	if strings.TrimSpace(cleaned) == "" {
		return GenerationResult{}, fmt.Errorf("%w: empty response", ErrNoStructuredResult)
	}

	for _, ex := range generationExtractors {
		candidate, ok := ex.extract(cleaned)
		if !ok {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
			continue
		}
		return GenerationResult{
			SQL:                   strings.TrimSpace(jsonutil.FlexibleStringValue(fields["sql"])),
			NeedsClarification:    jsonutil.FlexibleBoolValue(fields["needs_clarification"]),
			ClarificationQuestion: strings.TrimSpace(jsonutil.FlexibleStringValue(fields["clarification_question"])),
			Strategy:              ex.name,
		}, nil
	}

	if body, ok := fencedBlock(cleaned, "sql"); ok {
		return GenerationResult{SQL: body, Strategy: "fenced_sql"}, nil
	}

	return GenerationResult{}, fmt.Errorf("%w: tried %d strategies", ErrNoStructuredResult, len(generationExtractors)+1)
}

// TableSelection is the structured answer to a table identification prompt.
type TableSelection struct {
	Tables []string `json:"tables"`
}

// ParseTableSelection extracts {"tables": [...]} or a bare JSON array of names.
func ParseTableSelection(response string) ([]string, error) {
	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return nil, err
	}

	var names []string
	if strings.HasPrefix(strings.TrimSpace(jsonStr), "[") {
		if err := json.Unmarshal([]byte(jsonStr), &names); err != nil {
			return nil, fmt.Errorf("unmarshal table list: %w", err)
		}
	} else {
		sel, err := ParseJSONResponse[TableSelection](jsonStr)
		if err != nil {
			return nil, err
		}
		names = sel.Tables
	}

	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}
