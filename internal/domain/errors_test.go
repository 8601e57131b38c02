package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", NewValidation("Please enter an image URL"), "Please enter an image URL"},
		{"wrapped validation", fmt.Errorf("submit: %w", NewValidation("too big")), "too big"},
		{"transport", fmt.Errorf("post: %w", ErrTransport), MsgNoResponse},
		{"oracle with message", &OracleError{Status: 500, Message: "Error processing image"}, "Error processing image"},
		{"oracle without message", &OracleError{Status: 502}, MsgServerError},
		{"bare oracle sentinel", fmt.Errorf("decode: %w", ErrOracle), MsgServerError},
		{"unknown", errors.New("boom"), "Error: boom"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := UserMessage(tc.err, MsgServerError); got != tc.want {
				t.Errorf("UserMessage() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestOracleError_Unwrap(t *testing.T) {
	err := fmt.Errorf("search: %w", &OracleError{Status: 404, Message: "Product not found"})
	if !errors.Is(err, ErrOracle) {
		t.Fatal("expected errors.Is(err, ErrOracle)")
	}
	var oe *OracleError
	if !errors.As(err, &oe) || oe.Status != 404 {
		t.Fatalf("errors.As failed: %v", err)
	}
	if oe.Error() != "oracle error: status 404: Product not found" {
		t.Errorf("Error() = %q", oe.Error())
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	if !errors.Is(NewValidation("x"), ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
}
