package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found")
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "not found" {
		t.Errorf("expected message 'not found', got %q", err.Message)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeStorage, "backend down")
	if !err.Retryable {
		t.Error("STORAGE_ERROR should be retryable")
	}
}

func TestAppError_TypeMismatch_Success(t *testing.T) {
	err := TypeMismatch(2, "entity.Entity", "foo")
	if err.Code != ErrCodeTypeMismatch {
		t.Errorf("expected TYPE_MISMATCH, got %s", err.Code)
	}
	if err.Details["index"] != 2 {
		t.Errorf("expected index=2, got %v", err.Details["index"])
	}
	if err.Details["actual"] != "string" {
		t.Errorf("expected actual=string, got %v", err.Details["actual"])
	}
	want := "Expected all elements to be of type entity.Entity, string given"
	if err.Message != want {
		t.Errorf("expected message %q, got %q", want, err.Message)
	}
}

func TestAppError_TypeMismatch_Nil(t *testing.T) {
	err := TypeMismatch(0, "entity.Entity", nil)
	if err.Details["actual"] != "nil" {
		t.Errorf("expected actual=nil, got %v", err.Details["actual"])
	}
}

func TestAppError_NotFound_Success(t *testing.T) {
	err := NotFound("user", 123)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", err.Code)
	}
	if err.Details["resource"] != "user" {
		t.Errorf("expected resource=user, got %v", err.Details["resource"])
	}
	if err.Details["id"] != "123" {
		t.Errorf("expected id=123, got %v", err.Details["id"])
	}
	if err.Message != `user "123" not found` {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestAppError_NotFound_NilID(t *testing.T) {
	err := NotFound("user", nil)
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is nil")
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NotFound("item", "1").WithCause(cause)
	if err.Cause != cause {
		t.Error("expected cause to be set via WithCause")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() should contain cause, got %q", err.Error())
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := NotFound("item", "1").WithDetails(map[string]any{
		"extra": "info",
	})
	if err.Details["extra"] != "info" {
		t.Errorf("expected extra=info in details")
	}
	if err.Details["resource"] != "item" {
		t.Error("expected original details to be preserved")
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{}
	err.WithDetail("key", "value")
	if err.Details == nil {
		t.Fatal("expected Details map to be initialized")
	}
	if err.Details["key"] != "value" {
		t.Errorf("expected key=value, got %v", err.Details["key"])
	}
}

func TestAppError_Unwrap_Success(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := StorageError("sqlite", cause)
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		retryable bool
	}{
		{"InvalidArgument", InvalidArgument("bad"), ErrCodeInvalidArgument, false},
		{"InvalidArgumentf", InvalidArgumentf("bad %d", 1), ErrCodeInvalidArgument, false},
		{"PreconditionFailed", PreconditionFailed("no pipeline"), ErrCodePreconditionFailed, false},
		{"InvalidOperation", InvalidOperation("unknown stub"), ErrCodeInvalidOperation, false},
		{"AlreadyExists", AlreadyExists("class", "user"), ErrCodeAlreadyExists, false},
		{"StorageError", StorageError("redis", nil), ErrCodeStorage, true},
		{"Internal", Internal(nil), ErrCodeInternal, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v, got %v", tc.retryable, tc.err.Retryable)
			}
		})
	}
}

func TestAppError_IsAppError_Success(t *testing.T) {
	appErr := NotFound("x", nil)
	if !IsAppError(appErr) {
		t.Error("expected IsAppError to return true for AppError")
	}

	wrapped := fmt.Errorf("wrapped: %w", appErr)
	if !IsAppError(wrapped) {
		t.Error("expected IsAppError to return true for wrapped AppError")
	}

	if IsAppError(fmt.Errorf("plain error")) {
		t.Error("expected IsAppError to return false for plain error")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("save: %w", TypeMismatch(0, "entity.Entity", 1))
	if !HasCode(err, ErrCodeTypeMismatch) {
		t.Error("expected HasCode to find TYPE_MISMATCH through wrapping")
	}
	if HasCode(err, ErrCodeNotFound) {
		t.Error("expected HasCode to reject a different code")
	}
	if HasCode(stderrors.New("plain"), ErrCodeInternal) {
		t.Error("expected HasCode to return false for plain errors")
	}
}

func TestHasCode_WholeChain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"outer code", StorageError("redis", NotFound("record", 1)), ErrCodeStorage, true},
		{"cause code", StorageError("redis", NotFound("record", 1)), ErrCodeNotFound, true},
		{"cause behind fmt wrap", fmt.Errorf("op: %w", Internal(fmt.Errorf("y: %w", InvalidArgument("z")))), ErrCodeInvalidArgument, true},
		{"joined", stderrors.Join(stderrors.New("a"), AlreadyExists("record", 2)), ErrCodeAlreadyExists, true},
		{"absent", StorageError("redis", stderrors.New("down")), ErrCodeNotFound, false},
		{"nil", nil, ErrCodeInternal, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasCode(tc.err, tc.code); got != tc.want {
				t.Errorf("HasCode(%v, %s) = %v, want %v", tc.err, tc.code, got, tc.want)
			}
		})
	}
}

func TestAppError_Clone(t *testing.T) {
	shared := InvalidArgument("name required").WithDetail("field", "name")
	c := shared.Clone().WithDetail("index", 3)
	if _, ok := shared.Details["index"]; ok {
		t.Error("Clone must not share Details with the original")
	}
	if c.Code != shared.Code || c.Message != shared.Message || c.Details["field"] != "name" {
		t.Errorf("unexpected clone %+v", c)
	}

	if (&AppError{Code: ErrCodeInternal}).Clone().Details != nil {
		t.Error("a nil Details map should stay nil")
	}
}

func TestAppError_ImplementsErrorInterface(t *testing.T) {
	var err error = NotFound("test", "1")
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}

	var appErr *AppError
	if !As(err, &appErr) {
		t.Error("As should work with AppError")
	}
}
