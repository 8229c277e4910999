package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("hunter2abc", 4)
	require.NoError(t, err)
	require.NotEqual(t, "hunter2abc", hash)

	assert.NoError(t, ComparePassword(hash, "hunter2abc"))
	assert.Error(t, ComparePassword(hash, "wrong-password"))
}

func TestCheckPasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		minLen   int
		wantErr  bool
	}{
		{"acceptable", "correct1horse", 8, false},
		{"too short", "ab1", 8, true},
		{"digits only", "123456789", 8, true},
		{"letters only", "abcdefghij", 8, true},
		{"meets custom minimum", "pass12", 6, false},
		{"zero minimum falls back to default", "short1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPasswordStrength(tt.password, tt.minLen)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
