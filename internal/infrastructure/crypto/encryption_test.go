package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/settlement-service/internal/config"
)

var testKey = strings.Repeat("ab", 32)

func TestAESSecretBox_SealOpen(t *testing.T) {
	box, err := NewAESSecretBox(testKey)
	require.NoError(t, err)

	ciphertext, iv, err := box.Seal("4c0883a69102937d6231471b5dbb6204fe512961708279f2e3e8a5d4b8e3e7d1")
	require.NoError(t, err)

	plaintext, err := box.Open(ciphertext, iv)
	require.NoError(t, err)
	assert.Equal(t, "4c0883a69102937d6231471b5dbb6204fe512961708279f2e3e8a5d4b8e3e7d1", plaintext)

	other, err := NewAESSecretBox(strings.Repeat("cd", 32))
	require.NoError(t, err)
	_, err = other.Open(ciphertext, iv)
	assert.Error(t, err)
}

func TestNewAESSecretBox_InvalidKey(t *testing.T) {
	_, err := NewAESSecretBox("zz")
	assert.Error(t, err)
	_, err = NewAESSecretBox("abcd")
	assert.Error(t, err)
}

func TestAdminPrivateKey(t *testing.T) {
	box, err := NewAESSecretBox(testKey)
	require.NoError(t, err)
	ciphertext, iv, err := box.Seal("deadbeef")
	require.NoError(t, err)

	tests := []struct {
		name    string
		cfg     config.PayoutConfig
		want    string
		wantErr bool
	}{
		{name: "plain", cfg: config.PayoutConfig{AdminPrivateKey: " 0xabc "}, want: "0xabc"},
		{name: "none", cfg: config.PayoutConfig{}, want: ""},
		{name: "sealed", cfg: config.PayoutConfig{AdminPrivateKeyCiphertext: ciphertext, AdminPrivateKeyIV: iv, KeyEncryptionKey: testKey}, want: "deadbeef"},
		{name: "sealed combined", cfg: config.PayoutConfig{AdminPrivateKeyCiphertext: iv + ":" + ciphertext, KeyEncryptionKey: testKey}, want: "deadbeef"},
		{name: "missing kek", cfg: config.PayoutConfig{AdminPrivateKeyCiphertext: ciphertext, AdminPrivateKeyIV: iv}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AdminPrivateKey(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
