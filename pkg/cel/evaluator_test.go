package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsgate/internal/filter"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "valid simple expression", expr: `messageType`, wantError: false},
		{name: "valid conjunction", expr: `messageType && !parentEvent`, wantError: false},
		{name: "invalid expression", expr: `invalid syntax here!!!`, wantError: true},
		{name: "undefined variable", expr: `undefinedVar`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBooleanExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "valid bool expression", expr: `messageType || parentEvent`, wantError: false},
		{name: "non-bool expression", expr: `1 + 2`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateBooleanExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProgramEval(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name    string
		expr    string
		results map[filter.Kind]bool
		want    bool
	}{
		{
			name:    "single true kind",
			expr:    `messageType`,
			results: map[filter.Kind]bool{filter.KindMessageType: true},
			want:    true,
		},
		{
			name:    "conjunction with negation",
			expr:    `attachedEventId && !parentEvent`,
			results: map[filter.Kind]bool{filter.KindAttachedEventId: true, filter.KindParentEvent: false},
			want:    true,
		},
		{
			name:    "conjunction fails on negated kind",
			expr:    `attachedEventId && !parentEvent`,
			results: map[filter.Kind]bool{filter.KindAttachedEventId: true, filter.KindParentEvent: true},
			want:    false,
		},
		{
			name:    "disjunction over attachments",
			expr:    `attachedMessageId || attachedEventId || attachedEventIds`,
			results: map[filter.Kind]bool{filter.KindAttachedEventIds: true},
			want:    true,
		},
		{
			name:    "absent kind defaults to false",
			expr:    `messageBodyText`,
			results: map[filter.Kind]bool{},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := eval.Compile(tt.expr)
			require.NoError(t, err)

			got, err := program.Eval(ctx, tt.results)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileRejectsNonBool(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.Compile(`1 + 1`)
	assert.Error(t, err)
}
