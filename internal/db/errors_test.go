package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError(t *testing.T) {
	cause := errors.New("connection refused")
	err := storeErr("read analysis", cause)

	assert.Equal(t, "profile store read analysis: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	var storeError *StoreError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &storeError))
	assert.Equal(t, "read analysis", storeError.Op)
}
