package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("test-secret"))

	tcases := []struct {
		name    string
		addr    string
		dsn     string
		secret  string
		origins []string
		wantErr string
	}{
		{
			name:    "valid config",
			addr:    "localhost:8000",
			dsn:     "host=localhost user=postgres dbname=postgres",
			secret:  secret,
			origins: []string{"http://localhost:3000"},
		},
		{
			name:    "empty server address",
			dsn:     "host=localhost user=postgres dbname=postgres",
			secret:  secret,
			wantErr: "server address cannot be empty",
		},
		{
			name:    "empty database DSN",
			addr:    "localhost:8000",
			secret:  secret,
			wantErr: "database DSN cannot be empty",
		},
		{
			name:    "empty signing secret",
			addr:    "localhost:8000",
			dsn:     "host=localhost user=postgres dbname=postgres",
			wantErr: "signing secret cannot be empty",
		},
		{
			name:    "malformed signing secret",
			addr:    "localhost:8000",
			dsn:     "host=localhost user=postgres dbname=postgres",
			secret:  "not-base64!!!",
			wantErr: "decode signing secret",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.addr, tc.dsn, tc.secret, tc.origins)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr, "expected error to match")
				assert.Nil(t, cfg, "expected no config on error")
				return
			}

			assert.NoError(t, err, "expected no error for valid config")
			assert.Equal(t, tc.addr, cfg.ServerAddr, "expected server address to be set")
			assert.Equal(t, tc.dsn, cfg.DatabaseDSN, "expected database DSN to be set")
			assert.Equal(t, []byte("test-secret"), cfg.SigningKey, "expected decoded signing key")
			assert.Equal(t, tc.origins, cfg.AllowedOrigins, "expected allowed origins to be set")
		})
	}
}

func Test_decodeSigningSecret(t *testing.T) {
	decoded, err := decodeSigningSecret(base64.StdEncoding.EncodeToString([]byte("secret")))
	assert.NoError(t, err, "expected no error decoding valid base64")
	assert.Equal(t, []byte("secret"), decoded, "expected decoded secret to match")

	_, err = decodeSigningSecret("%%%")
	assert.Error(t, err, "expected error decoding invalid base64")
}
