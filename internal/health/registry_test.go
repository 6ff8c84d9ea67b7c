package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryCheckAll(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("database", CheckerFunc(func(context.Context) error { return nil }))
	r.Register("redis", CheckerFunc(func(context.Context) error { return errors.New("connection refused") }))

	assert.Equal(t, []string{"database", "redis"}, r.List())

	results := r.CheckAll(context.Background())
	assert.NoError(t, results["database"])
	assert.EqualError(t, results["redis"], "connection refused")
	assert.False(t, Healthy(results))

	r.Unregister("redis")
	assert.True(t, Healthy(r.CheckAll(context.Background())))
}

func TestRegistryTimeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register("slow", CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	results := r.CheckAll(context.Background())
	assert.ErrorIs(t, results["slow"], context.DeadlineExceeded)
}
