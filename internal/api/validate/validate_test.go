package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequired(t *testing.T) {
	assert.Nil(t, Required("f", "value"))
	assert.NotNil(t, Required("f", ""))
	assert.NotNil(t, Required("f", "   "))
}

func TestMaxLen(t *testing.T) {
	assert.Nil(t, MaxLen("f", strings.Repeat("a", 200), 200))
	assert.NotNil(t, MaxLen("f", strings.Repeat("a", 201), 200))
}

func TestOneOf(t *testing.T) {
	assert.Nil(t, OneOf("platform", "ios", "ios", "android", "macos"))
	assert.NotNil(t, OneOf("platform", "windows", "ios", "android", "macos"))
}

func TestErrsError(t *testing.T) {
	errs := Errs{
		{Field: "a", Msg: "required"},
		{Field: "b", Msg: "too long"},
	}
	assert.Equal(t, "a: required; b: too long", errs.Error())
}
