package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerify_RoundTrip(t *testing.T) {
	hash, err := Hash("Sup3r-secret!")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$2a$12$"))

	assert.True(t, Verify("Sup3r-secret!", hash))
	assert.False(t, Verify("sup3r-secret!", hash))
}

func TestDummyHash_NeverMatches(t *testing.T) {
	// A real bcrypt hash that no submitted password should verify against.
	assert.False(t, Verify("password", DummyHash))
	assert.False(t, Verify("", DummyHash))
}
