package postgres

import (
	"errors"
	"testing"

	pkgerrors "cargopay/pkg/errors"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestRetryableAppendError(t *testing.T) {
	serialization := &pq.Error{Code: "40001"}
	uniqueViolation := &pq.Error{Code: "23505"}
	foreignKey := &pq.Error{Code: "23503"}

	assert.True(t, retryableAppendError(serialization))
	assert.True(t, retryableAppendError(uniqueViolation))
	assert.False(t, retryableAppendError(foreignKey))
	assert.False(t, retryableAppendError(errors.New("connection reset")))
}

func TestRetryableAppendError_Wrapped(t *testing.T) {
	inner := &pq.Error{Code: "40001"}

	wrapped := pkgerrors.Wrap(inner, "failed to insert fund transaction")
	assert.True(t, retryableAppendError(wrapped))

	wrapped = pkgerrors.Wrap(errors.New("timeout"), "failed to insert fund transaction")
	assert.False(t, retryableAppendError(wrapped))
}
