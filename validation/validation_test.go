package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kbukum/persist/errors"
)

func TestValidatorRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"present", "John", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New().Required("name", tc.value)
			if v.HasErrors() != tc.wantErr {
				t.Errorf("Required(%q) errors = %v, want %v", tc.value, v.Errors(), tc.wantErr)
			}
		})
	}
}

func TestValidatorUUID(t *testing.T) {
	if New().UUID("id", "").HasErrors() {
		t.Error("expected no error for empty UUID")
	}
	if New().UUID("id", uuid.New().String()).HasErrors() {
		t.Error("expected no error for valid UUID")
	}
	if !New().UUID("id", "bad-uuid").HasErrors() {
		t.Error("expected error for invalid UUID")
	}
}

func TestValidatorMaxLengthAndMin(t *testing.T) {
	if New().MaxLength("desc", "short", 10).HasErrors() {
		t.Error("expected no error for string within max length")
	}
	if !New().MaxLength("desc", "this is too long", 5).HasErrors() {
		t.Error("expected error for string exceeding max length")
	}
	if New().Min("limit", 5, 1).HasErrors() {
		t.Error("expected no error for value above min")
	}
	if !New().Min("limit", 0, 1).HasErrors() {
		t.Error("expected error for value below min")
	}
}

func TestValidatorOneOf(t *testing.T) {
	drivers := []string{"memory", "sqlite", "redis"}
	if New().OneOf("driver", "redis", drivers).HasErrors() {
		t.Error("expected no error for valid oneOf value")
	}
	if !New().OneOf("driver", "mongo", drivers).HasErrors() {
		t.Error("expected error for invalid oneOf value")
	}
	if New().OneOf("driver", "", drivers).HasErrors() {
		t.Error("expected no error for empty oneOf value")
	}
}

func TestValidatorCustom(t *testing.T) {
	v := New().Custom(false, "field", "custom error")
	if !v.HasErrors() {
		t.Fatal("expected error for false condition")
	}
	if v.Errors()[0].Message != "custom error" {
		t.Errorf("expected 'custom error', got %q", v.Errors()[0].Message)
	}
}

func TestValidatorValidate(t *testing.T) {
	if appErr := New().Required("name", "John").Validate(); appErr != nil {
		t.Errorf("expected nil for valid input, got %v", appErr)
	}

	appErr := New().Required("name", "").Required("email", "").Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeInvalidArgument {
		t.Errorf("expected INVALID_ARGUMENT, got %s", appErr.Code)
	}
	if _, ok := appErr.Details["fields"]; !ok {
		t.Fatal("expected fields detail")
	}
	if !strings.Contains(appErr.Message, "name") || !strings.Contains(appErr.Message, "email") {
		t.Errorf("expected both fields in message, got %q", appErr.Message)
	}
}

func TestValidatorChaining(t *testing.T) {
	v := New()
	if result := v.Required("name", "John").MaxLength("name", "John", 100).Min("age", 25, 18); result != v {
		t.Error("expected chaining to return same validator")
	}
}

type redisSettings struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
	DB   int    `mapstructure:"db" validate:"gte=0,lte=15"`
}

type storeSettings struct {
	Driver     string        `mapstructure:"driver" validate:"required,oneof=memory sqlite redis"`
	Collection string        `json:"collection" validate:"required"`
	Redis      redisSettings `mapstructure:"redis"`
}

func TestStructValidateValid(t *testing.T) {
	err := Validate(storeSettings{
		Driver:     "redis",
		Collection: "users",
		Redis:      redisSettings{Addr: "localhost:6379"},
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	err := Validate(storeSettings{Driver: "mongo", Redis: redisSettings{Addr: "nope", DB: 20}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.HasCode(err, errors.ErrCodeInvalidArgument) {
		t.Errorf("expected INVALID_ARGUMENT, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"driver: must be one of", "collection: is required", "redis.addr", "redis.db"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error to mention %q, got %q", want, msg)
		}
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"IDField":    "i_d_field",
		"Collection": "collection",
		"keyPrefix":  "key_prefix",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
