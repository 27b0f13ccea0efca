package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := NewError(KindNotFound, "store.GetDevice", errors.New("no such key"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewError(KindUnreachable, "remoteprobe.CollectAll", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "remoteprobe.CollectAll")
	assert.Contains(t, err.Error(), "unreachable")
}

func TestErrorWithoutCause(t *testing.T) {
	err := NewError(KindConflict, "alerts.Create", nil)
	assert.Equal(t, "alerts.Create: conflict", err.Error())
	assert.Nil(t, err.Unwrap())
}
