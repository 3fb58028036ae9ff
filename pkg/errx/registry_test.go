package errx

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPrefixesCodes(t *testing.T) {
	reg := NewRegistry("WIDGET")
	code := reg.Register("NOT_FOUND", TypeNotFound, http.StatusNotFound, "Widget not found")

	assert.Equal(t, "WIDGET_NOT_FOUND", code.Code)
	assert.Equal(t, TypeNotFound, code.Type)
	assert.Equal(t, http.StatusNotFound, code.HTTPStatus)
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry("WIDGET")
	registered := reg.Register("NOT_FOUND", TypeNotFound, http.StatusNotFound, "Widget not found")

	found, ok := reg.Lookup("NOT_FOUND")
	require.True(t, ok)
	assert.Same(t, registered, found)

	_, ok = reg.Lookup("NEVER_REGISTERED")
	assert.False(t, ok)
}

func TestRegistryNewVariants(t *testing.T) {
	reg := NewRegistry("WIDGET")
	code := reg.Register("BROKEN", TypeBusiness, http.StatusUnprocessableEntity, "Widget is broken")

	t.Run("defaults", func(t *testing.T) {
		err := reg.New(code)
		assert.Equal(t, "WIDGET_BROKEN", err.Code)
		assert.Equal(t, "Widget is broken", err.Message)
		assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	})

	t.Run("message override", func(t *testing.T) {
		err := reg.NewWithMessage(code, "Widget 42 is broken")
		assert.Equal(t, "WIDGET_BROKEN", err.Code)
		assert.Equal(t, "Widget 42 is broken", err.Message)
	})

	t.Run("cause", func(t *testing.T) {
		cause := errors.New("gears jammed")
		err := reg.NewWithCause(code, cause)
		assert.ErrorIs(t, err, cause)
	})
}

func TestHasCode(t *testing.T) {
	reg := NewRegistry("WIDGET")
	code := reg.Register("BROKEN", TypeBusiness, http.StatusUnprocessableEntity, "Widget is broken")
	other := reg.Register("MISSING", TypeNotFound, http.StatusNotFound, "Widget not found")

	err := reg.New(code).WithDetail("widget_id", "42")
	assert.True(t, HasCode(err, code))
	assert.False(t, HasCode(err, other))
	assert.False(t, HasCode(nil, code))

	wrapped := Wrap(err, "loading widget", TypeInternal)
	assert.True(t, HasCode(wrapped, code), "codes survive wrapping")
}
