package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "localhost:6379", Config{Host: "localhost", Port: 6379}.Addr())
}

func TestNewLocker_KeyPrefix(t *testing.T) {
	assert.Equal(t, "clover:lock:init", NewLocker(&Client{}, "").key("init"))
	assert.Equal(t, "etl:season_start", NewLocker(&Client{}, "etl:").key("season_start"))
}

func TestClient_CloseWithoutConnection(t *testing.T) {
	assert.NoError(t, (&Client{}).Close())
}
