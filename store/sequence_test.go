package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnavailable(t *testing.T) {
	assert.NoError(t, Unavailable(nil))

	refused := errors.New("connection refused")
	err := Unavailable(refused)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, refused)

	for _, ctxErr := range []error{context.Canceled, context.DeadlineExceeded} {
		err := Unavailable(ctxErr)
		assert.ErrorIs(t, err, ctxErr)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
}
