package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisAssignmentCacheRequiresURL(t *testing.T) {
	_, err := NewRedisAssignmentCache(RedisAssignmentCacheOptions{})
	require.Error(t, err)
}

func TestNewRedisAssignmentCacheRejectsInvalidURL(t *testing.T) {
	_, err := NewRedisAssignmentCache(RedisAssignmentCacheOptions{RedisURL: "not-a-url"})
	require.Error(t, err)
}

func TestNewRedisAssignmentCacheAppliesDefaults(t *testing.T) {
	c, err := NewRedisAssignmentCache(RedisAssignmentCacheOptions{RedisURL: "redis://127.0.0.1:6379/0"})
	require.NoError(t, err)
	assert.Equal(t, "kaizen:experiment:assignment", c.namespace)
	assert.Equal(t, 30*24*1.0, c.ttl.Hours())
}

func TestRedisAssignmentCacheKeyIncludesNamespaceExperimentAndUser(t *testing.T) {
	c, err := NewRedisAssignmentCache(RedisAssignmentCacheOptions{RedisURL: "redis://127.0.0.1:6379/0", Namespace: "ns"})
	require.NoError(t, err)
	assert.Equal(t, "ns:my-experiment:user-1", c.key("my-experiment", "user-1"))
}
