package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPing_NilPool(t *testing.T) {
	err := Ping(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilPool)
	assert.EqualError(t, err, "pool is nil")
}

func TestCheck_NilPool(t *testing.T) {
	status := Check(context.Background(), nil, DefaultSchema)

	assert.False(t, status.Healthy)
	assert.False(t, status.SchemaReady)
	assert.ErrorIs(t, status.Error, ErrNilPool)
}

func TestWaitForReady_NilPool(t *testing.T) {
	err := WaitForReady(context.Background(), nil, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrNilPool)
}
