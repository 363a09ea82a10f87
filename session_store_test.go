package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, record)

	original := &SessionRecord{
		Principal: []byte(`{"id":"2"}`),
		Login:     "jill",
		Expiry:    time.Now().Add(time.Minute).Unix(),
	}
	require.NoError(t, store.Put(ctx, "abc", original))

	record, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "jill", record.Login)

	// the store hands out copies, not aliases
	record.Login = "mutated"
	again, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "jill", again.Login)

	require.NoError(t, store.Delete(ctx, "abc"))
	record, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestMemoryStore_ReturnsExpiredRecords(t *testing.T) {
	// expiry enforcement belongs to the session manager, which needs to
	// observe an expired record to downgrade the request to anonymous
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "stale", &SessionRecord{
		Login:  "jill",
		Expiry: time.Now().Add(-time.Hour).Unix(),
	}))

	record, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Less(t, record.Expiry, time.Now().Unix())
}
