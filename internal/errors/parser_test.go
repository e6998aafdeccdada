package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompilerOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []Diagnostic
	}{
		{
			name:   "lessc parse error",
			output: "ParseError: Unrecognised input in source/less/style.less on line 3, column 5:\n2 body {\n3   @@\n4 }",
			want: []Diagnostic{{
				Kind: "ParseError", File: "source/less/style.less", Line: 3, Column: 5,
				Message: "Unrecognised input", Hint: diagnosticHints["ParseError"],
			}},
		},
		{
			name:   "lessc name error in import",
			output: "NameError: variable @brand is undefined in /site/source/less/blocks/header.less on line 12, column 10:",
			want: []Diagnostic{{
				Kind: "NameError", File: "/site/source/less/blocks/header.less", Line: 12, Column: 10,
				Message: "variable @brand is undefined", Hint: diagnosticHints["NameError"],
			}},
		},
		{
			name:   "postcss syntax error",
			output: "CssSyntaxError: <css input>:1:5: Unknown word",
			want: []Diagnostic{{
				Kind: "CssSyntaxError", File: "<css input>", Line: 1, Column: 5,
				Message: "Unknown word", Hint: diagnosticHints["CssSyntaxError"],
			}},
		},
		{
			name:   "generic location",
			output: "  style.less:7:2: unexpected token\n",
			want:   []Diagnostic{{File: "style.less", Line: 7, Column: 2, Message: "unexpected token"}},
		},
		{
			name:   "nothing located",
			output: "lessc: command failed\nexit status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCompilerOutput(tt.output))
		})
	}
}

func TestFirstDiagnostic(t *testing.T) {
	out := "a.less:1:1: first\nb.less:2:2: second"
	d, ok := FirstDiagnostic(out)
	require.True(t, ok)
	assert.Equal(t, "a.less", d.File)

	_, ok = FirstDiagnostic("no location here")
	assert.False(t, ok)
}

func TestLocatedTaskError(t *testing.T) {
	err := NewTransformError("styles", "compile failed", errors.New("bad")).
		WithPath("source/less/style.less").
		WithLocation(3, 5).
		WithHint("fix it")

	assert.Equal(t, "[styles] source/less/style.less:3:5 compile failed: bad", err.Error())
	assert.Equal(t, "fix it", HintOf(fmt.Errorf("build: %w", err)))
}

func TestHintOfJoinedErrors(t *testing.T) {
	joined := errors.Join(
		NewIOError("copy", "read", nil),
		NewTransformError("styles", "compile", nil).WithHint("install less"),
	)
	assert.Equal(t, "install less", HintOf(joined))
	assert.Empty(t, HintOf(errors.New("plain")))
	assert.Empty(t, HintOf(nil))
}
