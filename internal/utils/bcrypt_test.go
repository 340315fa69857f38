package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_Salted(t *testing.T) {
	first, err := HashPassword("password123")
	require.NoError(t, err)
	second, err := HashPassword("password123")
	require.NoError(t, err)

	assert.NotEqual(t, "password123", first)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "$2a$"))
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)
}

func TestCheckPasswordHash(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("password123", hash))
	assert.False(t, CheckPasswordHash("Password123", hash))
	assert.False(t, CheckPasswordHash("password123", "not-a-bcrypt-hash"))
}
