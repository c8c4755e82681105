package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutEndpointDiscards(t *testing.T) {
	s, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, NullStore{}, s)
	assert.NoError(t, s.Put(context.Background(), "k", []byte("v"), "text/plain"))
}

func TestNewMinIOStoreRequiresBucket(t *testing.T) {
	_, err := NewMinIOStore(context.Background(), Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "run.json", (&MinIOStore{}).ObjectKey("run.json"))
	assert.Equal(t, "loadtest/run.json", (&MinIOStore{BasePath: "loadtest/"}).ObjectKey("run.json"))
}
