package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStructuredBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare object", `{"plan":[]}`, `{"plan":[]}`, true},
		{"prose and fence", "Sure! Here is the plan:\n```json\n{\"plan\":[]}\n```\nGood luck.", `{"plan":[]}`, true},
		{"nested braces", `x {"plan":[{"tool":"a","arguments":{}}]} y`, `{"plan":[{"tool":"a","arguments":{}}]}`, true},
		{"greedy last brace", `{"a":1} and later }`, `{"a":1} and later }`, true},
		{"no braces", "I cannot help with that.", "", false},
		{"closing before opening", "} nothing {", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractStructuredBlock(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractStructuredBlockIsIdempotent(t *testing.T) {
	inputs := []string{
		"prefix {\"plan\":[{\"tool\":\"x\"}]} suffix",
		"```\n{\"steps\":[]}\n```",
		"{ {} } }",
		"{}",
	}
	for _, in := range inputs {
		once, ok := ExtractStructuredBlock(in)
		require.True(t, ok)
		twice, ok := ExtractStructuredBlock(once)
		require.True(t, ok)
		assert.Equal(t, once, twice)
	}
}

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan(`{"plan":[
		{"tool":"create_script","arguments":{"path":"Scripts/Foo.cs","content":"class Foo {}"},"description":"make Foo"},
		{"tool":"create_asset","description":"make Bar"}
	]}`)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)

	assert.Equal(t, "create_script", p.Steps[0].Tool)
	assert.Equal(t, "Scripts/Foo.cs", p.Steps[0].Arguments["path"])
	assert.Equal(t, "make Foo", p.Steps[0].Description)
	assert.NotNil(t, p.Steps[1].Arguments, "missing arguments should decode to an empty map")
	assert.Empty(t, p.OriginalRequest)
}

func TestParsePlanAcceptsStepsAlias(t *testing.T) {
	p, err := ParsePlan(`{"steps":[{"tool":"read_script","arguments":{"path":"a"}}]}`)
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "read_script", p.Steps[0].Tool)
}

func TestParsePlanEmptyPlanIsNotAnError(t *testing.T) {
	p, err := ParsePlan(`{"plan":[]}`)
	require.NoError(t, err)
	assert.True(t, p.Empty())
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "   ", ErrEmptyResponse},
		{"invalid json", `{"plan":[`, ErrParse},
		{"missing plan key", `{"foo":1}`, ErrParse},
		{"step without tool", `{"plan":[{"arguments":{}}]}`, ErrParse},
		{"plan not an array", `{"plan":"create everything"}`, ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseResponse(t *testing.T) {
	p, err := ParseResponse("Here you go:\n```json\n{\"plan\":[{\"tool\":\"a\"}]}\n```")
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)

	_, err = ParseResponse("no structure here")
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseResponse("")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.False(t, errors.Is(err, ErrParse))
}

func TestValidateRequiresRequestOnResume(t *testing.T) {
	p := Plan{Steps: []Step{{Tool: "a"}}}
	assert.NoError(t, p.Validate(false))
	assert.ErrorIs(t, p.Validate(true), ErrMissingRequest)

	p.OriginalRequest = "do a"
	assert.NoError(t, p.Validate(true))
}

type phaseTable map[string]Phase

func (t phaseTable) PhaseOf(tool string) (Phase, bool) {
	p, ok := t[tool]
	return p, ok
}

func TestClassify(t *testing.T) {
	lookup := phaseTable{
		"create_script": PhasePreReset,
		"create_asset":  PhasePostReset,
		"read_script":   PhasePreReset,
	}
	p := Plan{Steps: []Step{
		{Tool: "create_asset", Description: "asset 1"},
		{Tool: "create_script", Description: "script 1"},
		{Tool: "mystery"},
		{Tool: "create_asset", Description: "asset 2"},
		{Tool: "read_script"},
	}}

	pre, post := Classify(p, lookup)

	require.Len(t, pre, 3)
	assert.Equal(t, "create_script", pre[0].Tool)
	assert.Equal(t, "mystery", pre[1].Tool)
	assert.Equal(t, "read_script", pre[2].Tool)

	require.Len(t, post, 2)
	assert.Equal(t, "asset 1", post[0].Description)
	assert.Equal(t, "asset 2", post[1].Description)
}

func TestClassifyEmptyPlan(t *testing.T) {
	pre, post := Classify(Plan{}, phaseTable{})
	assert.Empty(t, pre)
	assert.Empty(t, post)
}

func TestFailures(t *testing.T) {
	results := []StepResult{
		Success(Step{Tool: "a"}, "ok"),
		Failure(Step{Tool: "b"}, "boom"),
		Success(Step{Tool: "c"}, "ok"),
	}
	failed := Failures(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Step.Tool)
}
