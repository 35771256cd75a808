package action_test

import (
	"errors"
	"testing"

	"github.com/aretw0/cortex/pkg/action"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCall_DottedKeysMerge(t *testing.T) {
	name, args, err := action.ParseCall("CALL: create|a.b=1|a.c=2")
	require.NoError(t, err)

	assert.Equal(t, "create", name)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1, "c": 2}}, args)
}

func TestParseCall_ValueDecoding(t *testing.T) {
	tests := []struct {
		name string
		line string
		want map[string]any
	}{
		{"Integer", "CALL: t|n=42", map[string]any{"n": 42}},
		{"Negative Float", "CALL: t|n=-1.5", map[string]any{"n": -1.5}},
		{"Literal Booleans", "CALL: t|a=True|b=False|c=None", map[string]any{"a": true, "b": false, "c": nil}},
		{"JSON Booleans", "CALL: t|a=true|b=null", map[string]any{"a": true, "b": nil}},
		{"Single Quoted", "CALL: t|s='hello world'", map[string]any{"s": "hello world"}},
		{"Double Quoted With Escapes", `CALL: t|s="line\nnext \"q\""`, map[string]any{"s": "line\nnext \"q\""}},
		{"List Literal", "CALL: t|l=[1, 'two', [3]]", map[string]any{"l": []any{1, "two", []any{3}}}},
		{"Tuple Literal", "CALL: t|l=(1, 2)", map[string]any{"l": []any{1, 2}}},
		{"Record Literal", "CALL: t|r={'k': 1, 'nested': {'x': True}}", map[string]any{"r": map[string]any{"k": 1, "nested": map[string]any{"x": true}}}},
		{"JSON Object", `CALL: t|r={"k": true, "v": [1, 2]}`, map[string]any{"r": map[string]any{"k": true, "v": []any{float64(1), float64(2)}}}},
		{"Bare Word", "CALL: t|q=football standings", map[string]any{"q": "football standings"}},
		{"Apostrophe In Bare Value", "CALL: t|q=don't stop|n=1", map[string]any{"q": "don't stop", "n": 1}},
		{"Date Stays String", "CALL: t|d=2024-01-05", map[string]any{"d": "2024-01-05"}},
		{"Equals Inside Quotes", "CALL: t|expr='x = y + 1'", map[string]any{"expr": "x = y + 1"}},
		{"Equals In Bare Value", "CALL: t|url=https://x.test/?a=1", map[string]any{"url": "https://x.test/?a=1"}},
		{"Pipe Inside Quotes", `CALL: t|text="a | b"|n=2`, map[string]any{"text": "a | b", "n": 2}},
		{"Pipe Inside Brackets", `CALL: t|l=["a|b"]`, map[string]any{"l": []any{"a|b"}}},
		{"Unbalanced Quote Stripped Raw", `CALL: t|s="abc`, map[string]any{"s": `"abc`}},
		{"Zero", "CALL: t|n=0", map[string]any{"n": 0}},
		{"Zero Fraction", "CALL: t|n=0.25|m=0e3", map[string]any{"n": 0.25, "m": float64(0)}},
		{"Leading Zero Stays String", "CALL: t|zip=007|id=0123", map[string]any{"zip": "007", "id": "0123"}},
		{"Padded Negative Stays String", "CALL: t|n=-01", map[string]any{"n": "-01"}},
		{"Infinity Stays String", "CALL: t|a=-inf|b=+Inf|c=-Infinity", map[string]any{"a": "-inf", "b": "+Inf", "c": "-Infinity"}},
		{"Hex Stays String", "CALL: t|h=0x1F", map[string]any{"h": "0x1F"}},
		{"Leading Zero In List", "CALL: t|l=[1, 2]|codes=[007]", map[string]any{"l": []any{1, 2}, "codes": "[007]"}},
		{"No Arguments", "CALL: ping", map[string]any{}},
		{"Trailing Separator", "CALL: ping|", map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, err := action.ParseCall(tt.line)
			require.NoError(t, err)
			assert.NotEmpty(t, name)
			if diff := cmp.Diff(tt.want, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCall_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"Missing Marker", "send_email|to=x"},
		{"Segment Without Separator", "CALL: send_email|to"},
		{"Empty Tool Name", "CALL: |a=1"},
		{"Empty Key", "CALL: t|=1"},
		{"Scalar Conflict", "CALL: t|a=1|a.b=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := action.ParseCall(tt.line)
			require.Error(t, err)
			assert.True(t, action.IsParseError(err))
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	line := `CALL: send_email|to="ops@example.com"|body.subject='Weekly'|body.lines=[1, 2]|body.meta={"k": "v"}`

	first, err := action.Parse(line)
	require.NoError(t, err)
	second, err := action.Parse(line)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("parse is not idempotent (-first +second):\n%s", diff)
	}
	assert.Equal(t, domain.ActionCall, first.Kind)
	assert.Equal(t, "send_email", first.Tool)
}

func TestParse_Terminal(t *testing.T) {
	act, err := action.Parse("  TERMINAL: The sheet is ready. ")
	require.NoError(t, err)
	assert.True(t, act.IsTerminal())
	assert.Equal(t, "The sheet is ready.", act.Answer)
}

func TestParse_RejectsUnmarkedLine(t *testing.T) {
	_, err := action.Parse("I think we should search")
	assert.True(t, action.IsParseError(err))
}

func TestClassify(t *testing.T) {
	t.Run("First Marker Decides", func(t *testing.T) {
		act, err := action.Classify("Thinking...\nCALL: search|q=x\nTERMINAL: done")
		require.NoError(t, err)
		assert.Equal(t, domain.ActionCall, act.Kind)
		assert.Equal(t, "CALL: search|q=x", act.Raw)
		assert.Empty(t, act.Tool, "call lines are parsed later")
	})

	t.Run("Last Terminal Wins", func(t *testing.T) {
		act, err := action.Classify("TERMINAL: draft\nnotes\nTERMINAL: final answer")
		require.NoError(t, err)
		assert.True(t, act.IsTerminal())
		assert.Equal(t, "final answer", act.Answer)
	})

	t.Run("Fenced Output", func(t *testing.T) {
		act, err := action.Classify("```\nCALL: search|q=x\n```")
		require.NoError(t, err)
		assert.Equal(t, domain.ActionCall, act.Kind)
	})

	t.Run("No Marker", func(t *testing.T) {
		_, err := action.Classify("I am not sure what to do")
		assert.ErrorIs(t, err, action.ErrNoAction)
		assert.True(t, errors.Is(err, domain.ErrPlan))
	})
}

func TestLastTerminal(t *testing.T) {
	assert.Equal(t, "b", action.LastTerminal("TERMINAL: a\nTERMINAL: b"))
	assert.Equal(t, "", action.LastTerminal("CALL: x"))
}

func TestFormat_RoundTrip(t *testing.T) {
	original := domain.Call("send_email", map[string]any{
		"to":   "ops@example.com",
		"body": map[string]any{"text": "a | b = c <ok>", "count": 3},
		"tags": []any{"x", "y"},
		"flag": true,
	})

	line := action.Format(original)
	parsed, err := action.Parse(line)
	require.NoError(t, err)

	assert.Equal(t, original.Tool, parsed.Tool)
	if diff := cmp.Diff(original.Args, parsed.Args); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	term := action.Format(domain.Terminal("all done"))
	assert.Equal(t, "TERMINAL: all done", term)
}
