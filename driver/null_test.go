package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNullDriver(t *testing.T) {
	ctx := context.Background()
	d := NewNull()

	entry, err := d.Get(ctx, "foo")
	assert.NoError(t, err)
	assert.Nil(t, entry)

	found, err := d.Exists(ctx, "foo")
	assert.NoError(t, err)
	assert.False(t, found)

	// Writes succeed but store nothing.
	assert.NoError(t, d.Put(ctx, &Entry{Key: "foo", Payload: []byte("bar"), CreatedAt: time.Now()}))
	entry, err = d.Get(ctx, "foo")
	assert.NoError(t, err)
	assert.Nil(t, entry)

	assert.NoError(t, d.Delete(ctx, "foo"))
	assert.NoError(t, d.Flush(ctx))
	assert.NoError(t, d.Close(ctx))
}
