package token

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	require.Len(t, a, 64)

	_, err = hex.DecodeString(a)
	require.NoError(t, err)

	b, err := New()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
