package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

type mapStore struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mapStore) Get(_ context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mapStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

type counter struct{ hits, misses int }

func (c *counter) CacheHit()  { c.hits++ }
func (c *counter) CacheMiss() { c.misses++ }

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	obs := &counter{}
	c := New(store, time.Hour, obs, nil)

	_, ok, err := c.Get(ctx, "pdf:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	in := entity.ExtractedText{Text: "STORE A", Method: entity.ExtractionPrimaryOCR, Pages: 2}
	require.NoError(t, c.Set(ctx, "pdf:abc", in))
	assert.Equal(t, time.Hour, store.ttls["docpipe:text:pdf:abc"])

	got, ok, err := c.Get(ctx, "pdf:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "STORE A", got.Text)
	assert.Equal(t, entity.ExtractionPrimaryOCR, got.Method)
	assert.Equal(t, 2, got.Pages)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestCorruptEntryIsMiss(t *testing.T) {
	store := newMapStore()
	store.data["docpipe:text:k"] = "{not json"
	c := New(store, 0, nil, nil)

	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreErrorPropagates(t *testing.T) {
	store := newMapStore()
	store.err = errors.New("connection refused")
	c := New(store, 0, nil, nil)

	_, _, err := c.Get(context.Background(), "k")
	assert.EqualError(t, err, "connection refused")
}
