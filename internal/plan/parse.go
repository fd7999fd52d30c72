package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse means the model answered but the answer does not fit the plan schema.
	ErrParse = errors.New("plan parse error")
	// ErrEmptyResponse means there was nothing to parse at all.
	ErrEmptyResponse = errors.New("empty model response")
)

// ExtractStructuredBlock returns the text from the first '{' to the last '}'.
// Models are asked for a bare object but often wrap it in prose or fences.
func ExtractStructuredBlock(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return "", false
	}
	return text[start : end+1], true
}

type rawPlan struct {
	Plan            *[]rawStep `json:"plan"`
	Steps           *[]rawStep `json:"steps"`
	OriginalRequest string     `json:"originalRequest"`
	CorrelationID   string     `json:"correlationId"`
}

type rawStep struct {
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments"`
	Description string         `json:"description"`
}

// ParsePlan decodes a structured block into a Plan.
func ParsePlan(block string) (Plan, error) {
	if strings.TrimSpace(block) == "" {
		return Plan{}, ErrEmptyResponse
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	steps := raw.Plan
	if steps == nil {
		steps = raw.Steps
	}
	if steps == nil {
		return Plan{}, fmt.Errorf("%w: missing \"plan\" array", ErrParse)
	}

	p := Plan{
		Steps:           make([]Step, 0, len(*steps)),
		OriginalRequest: raw.OriginalRequest,
		CorrelationID:   raw.CorrelationID,
	}
	for _, rs := range *steps {
		args := rs.Arguments
		if args == nil {
			args = map[string]any{}
		}
		p.Steps = append(p.Steps, Step{
			Tool:        strings.TrimSpace(rs.Tool),
			Arguments:   args,
			Description: rs.Description,
		})
	}

	if err := p.Validate(false); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// ParseResponse extracts and parses a plan from raw model output.
func ParseResponse(text string) (Plan, error) {
	if strings.TrimSpace(text) == "" {
		return Plan{}, ErrEmptyResponse
	}
	block, ok := ExtractStructuredBlock(text)
	if !ok {
		return Plan{}, fmt.Errorf("%w: no structured block in response", ErrParse)
	}
	return ParsePlan(block)
}
