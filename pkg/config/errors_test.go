package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorError(t *testing.T) {
	baseErr := errors.New("base error")

	tests := []struct {
		name     string
		err      *ValidationError
		contains []string
	}{
		{
			name:     "full error",
			err:      NewValidationError("pipeline", "analysis_timeout_seconds", baseErr),
			contains: []string{"pipeline", "analysis_timeout_seconds", "base error"},
		},
		{
			name:     "no field",
			err:      NewValidationError("rate_limit", "", errors.New("window must be positive")),
			contains: []string{"rate_limit", "window must be positive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				assert.Contains(t, errStr, substr)
			}
		})
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	validationErr := NewValidationError("cache", "field", baseErr)

	unwrapped := validationErr.Unwrap()
	assert.Equal(t, baseErr, unwrapped)
	assert.True(t, errors.Is(validationErr, baseErr))
}

func TestLoadErrorError(t *testing.T) {
	err := &LoadError{File: "pipeline.yaml", Err: errors.New("file not found")}
	errStr := err.Error()
	assert.Contains(t, errStr, "failed to load")
	assert.Contains(t, errStr, "pipeline.yaml")
	assert.Contains(t, errStr, "file not found")
}

func TestLoadErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	loadErr := &LoadError{File: "test.yaml", Err: baseErr}

	unwrapped := loadErr.Unwrap()
	assert.Equal(t, baseErr, unwrapped)
	assert.True(t, errors.Is(loadErr, baseErr))
}
