package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/scribe/errors"
)

type chunkPolicy struct {
	MaxDuration int    `mapstructure:"max_duration" validate:"required,gt=0"`
	MaxBytes    int    `mapstructure:"max_bytes" validate:"gte=0"`
	Separator   string `mapstructure:"separator" validate:"omitempty,oneof=space newline"`
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(chunkPolicy{MaxDuration: 60, Separator: "newline"}); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}

func TestValidate_Required(t *testing.T) {
	err := Validate(chunkPolicy{})
	if err == nil {
		t.Fatal("expected error for missing max_duration")
	}
	if errors.CodeOf(err) != errors.ErrCodeConfigInvalid {
		t.Errorf("expected CONFIG_INVALID, got %s", errors.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "max_duration") {
		t.Errorf("expected mapstructure field name in message, got %q", err.Error())
	}
}

func TestValidate_OneOf(t *testing.T) {
	err := Validate(chunkPolicy{MaxDuration: 10, Separator: "tab"})
	if err == nil {
		t.Fatal("expected error for bad separator")
	}
	if !strings.Contains(err.Error(), "one of") {
		t.Errorf("expected oneof message, got %q", err.Error())
	}
}
