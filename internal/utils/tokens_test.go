package utils

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNumericCodeRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := NewNumericCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com \n"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizeCompanyName(t *testing.T) {
	assert.Equal(t, NormalizeCompanyName("Acme Inc"), NormalizeCompanyName("ACME  INC "))
	assert.Equal(t, "acme inc", NormalizeCompanyName("\tAcme   Inc"))
}

func TestNewRandomHex(t *testing.T) {
	s, err := NewRandomHex(8)
	require.NoError(t, err)
	assert.Len(t, s, 16)
}
