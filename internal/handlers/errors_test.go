package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"citerag/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Invalid("top_k", "must be >= 0"), http.StatusBadRequest},
		{"not found", fmt.Errorf("document x: %w", apperr.ErrNotFound), http.StatusNotFound},
		{"dimension", apperr.DimensionMismatch(3, 4), http.StatusUnprocessableEntity},
		{"external", apperr.WrapError(apperr.ErrExternalService, "llm"), http.StatusBadGateway},
		{"cancelled", context.Canceled, http.StatusInternalServerError},
		{"other", errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
