package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInvalidInput, CodeOf(InvalidInput("bad")))
	assert.Equal(t, CodeConflict, CodeOf(Conflict("busy")))
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("missing")))
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestCodeOfWrappedError(t *testing.T) {
	inner := Transient("backend down", errors.New("dial tcp: refused"))
	wrapped := fmt.Errorf("refresh: %w", inner)
	assert.Equal(t, CodeTransient, CodeOf(wrapped))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Transient("backend down", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "backend down")
	assert.Contains(t, err.Error(), "refused")
}
