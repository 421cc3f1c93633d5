package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionChannel(t *testing.T) {
	assert.Equal(t, "live_session:abcDEF123456", SessionChannel("abcDEF123456"))
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
}
