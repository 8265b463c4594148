package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomState(t *testing.T) {
	a, err := RandomState(32)
	require.NoError(t, err)
	b, err := RandomState(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	// 32 bytes of entropy encode to 43 unpadded base64url characters.
	assert.Len(t, a, 43)
	assert.False(t, strings.ContainsAny(a, "+/="))
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("state-token", "state-token"))
	assert.False(t, SecureCompare("state-token", "other-token"))
	assert.False(t, SecureCompare("state-token", "state-toke"))
	assert.True(t, SecureCompare("", ""))
}
