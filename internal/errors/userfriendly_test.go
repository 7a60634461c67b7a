package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestUserFriendlyError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      UserFriendlyError
		contains []string
	}{
		{
			name:     "message only",
			err:      UserFriendlyError{Message: "something broke"},
			contains: []string{"something broke"},
		},
		{
			name: "all fields",
			err: UserFriendlyError{
				Message: "capture failed",
				Reason:  "truncated",
				Hint:    "check file",
				Try:     "re-capture",
				Err:     fmt.Errorf("unexpected EOF"),
			},
			contains: []string{"capture failed", "Reason: truncated", "Hint: check file", "Try: re-capture", "Details: unexpected EOF"},
		},
		{
			name: "no reason",
			err: UserFriendlyError{
				Message: "failed",
				Hint:    "hint here",
			},
			contains: []string{"failed", "Hint: hint here"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want to contain %q", msg, s)
				}
			}
		})
	}
}

func TestUserFriendlyError_ErrorOmitsEmptyFields(t *testing.T) {
	err := UserFriendlyError{Message: "msg"}
	msg := err.Error()
	if strings.Contains(msg, "Reason:") || strings.Contains(msg, "Hint:") || strings.Contains(msg, "Try:") || strings.Contains(msg, "Details:") {
		t.Errorf("Error() = %q, should not contain empty fields", msg)
	}
}

func TestUserFriendlyError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("root cause")
	err := UserFriendlyError{Message: "wrapper", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Unwrap should return the inner error")
	}

	var nilErr UserFriendlyError
	if nilErr.Unwrap() != nil {
		t.Error("Unwrap on nil Err should return nil")
	}
}

func TestWrapPCAPError(t *testing.T) {
	if WrapPCAPError(nil, "x.pcap") != nil {
		t.Fatal("nil error should stay nil")
	}

	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"missing", fmt.Errorf("open x.pcap: %w", fs.ErrNotExist), "does not exist"},
		{"permission", fmt.Errorf("open x.pcap: %w", fs.ErrPermission), "Permission denied"},
		{"bad magic", fmt.Errorf("Unknown magic 12345678"), "not a pcap"},
		{"truncated", fmt.Errorf("unexpected EOF"), "truncated"},
		{"other", fmt.Errorf("boom"), "could not be decoded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapPCAPError(tt.err, "x.pcap")
			var ufe UserFriendlyError
			if !errors.As(err, &ufe) {
				t.Fatalf("expected UserFriendlyError, got %T", err)
			}
			if !strings.Contains(ufe.Reason, tt.reason) {
				t.Errorf("Reason = %q, want to contain %q", ufe.Reason, tt.reason)
			}
			if !strings.Contains(ufe.Message, "x.pcap") {
				t.Errorf("Message = %q, want the path", ufe.Message)
			}
			if !errors.Is(err, tt.err) {
				t.Error("wrapped error should unwrap to the cause")
			}
		})
	}
}

func TestWrapCaptureError(t *testing.T) {
	if WrapCaptureError(nil, "eth0") != nil {
		t.Fatal("nil error should stay nil")
	}
	err := WrapCaptureError(fmt.Errorf("eth0: You don't have permission to capture on that device"), "eth0")
	var ufe UserFriendlyError
	if !errors.As(err, &ufe) || !strings.Contains(ufe.Reason, "privileges") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWrapConfigError(t *testing.T) {
	if WrapConfigError(nil, "madscope.yaml") != nil {
		t.Fatal("nil error should stay nil")
	}
	err := WrapConfigError(fmt.Errorf("classes.vendor: bad range"), "madscope.yaml")
	msg := err.Error()
	for _, want := range []string{"madscope.yaml", "bad range", "config validate"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want to contain %q", msg, want)
		}
	}
}

func TestWrapHexInputError(t *testing.T) {
	if WrapHexInputError(nil, "") != nil {
		t.Fatal("nil error should stay nil")
	}
	long := strings.Repeat("zz", 40)
	err := WrapHexInputError(fmt.Errorf("invalid byte"), long)
	var ufe UserFriendlyError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UserFriendlyError, got %T", err)
	}
	if strings.Contains(ufe.Reason, long) || !strings.Contains(ufe.Reason, "...") {
		t.Errorf("Reason should shorten long input: %q", ufe.Reason)
	}
}
