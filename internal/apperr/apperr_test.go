package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", InvalidInput("create", "text is required"), http.StatusBadRequest},
		{"not found", NotFound("update", "memory not found"), http.StatusNotFound},
		{"unavailable", Unavailable("complete", errors.New("timeout")), http.StatusServiceUnavailable},
		{"store", Store("insert", errors.New("disk full")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestKindThroughWrapping(t *testing.T) {
	base := NotFound("get", "memory not found")
	wrapped := fmt.Errorf("cli: %w", base)

	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindInvalidInput))
	assert.False(t, Is(nil, KindNotFound))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("embed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "embed: connection refused", err.Error())
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "create: text is required", InvalidInput("create", "text is required").Error())
	assert.Equal(t, "op: not_found", (&Error{Kind: KindNotFound, Op: "op"}).Error())
}
