package extract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport error", &TransportError{Err: errors.New("boom")}, true},
		{"wrapped transport error", fmt.Errorf("outer: %w", &TransportError{Err: errors.New("boom")}), true},
		{"connection refused pattern", errors.New("dial tcp 10.0.0.1:443: connection refused"), true},
		{"deadline pattern", errors.New("context deadline exceeded"), true},
		{"no such host pattern", errors.New("lookup api.example.com: no such host"), true},
		{"unrelated error", errors.New("boom"), false},
		{"schema failure", &SchemaParseError{Err: errors.New("bad json")}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransport(tt.err))
		})
	}
}

func TestIsSchemaFailure(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSchemaFailure(&SchemaParseError{Err: errors.New("bad json")}))
	assert.True(t, IsSchemaFailure(&SchemaValidationError{Err: errors.New("missing name")}))
	assert.True(t, IsSchemaFailure(fmt.Errorf("outer: %w", &SchemaValidationError{Err: errors.New("missing name")})))
	assert.False(t, IsSchemaFailure(&TransportError{Err: errors.New("boom")}))
	assert.False(t, IsSchemaFailure(nil))
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("inner")
	assert.ErrorIs(t, &TransportError{Err: inner}, inner)
	assert.ErrorIs(t, &SchemaParseError{Err: inner}, inner)
	assert.ErrorIs(t, &SchemaValidationError{Err: inner}, inner)
}
