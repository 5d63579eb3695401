// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package vitess

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dsn     string
		mode    TLSMode
		wantTLS string
		wantErr bool
	}{
		{name: "no tls mode keeps dsn", dsn: "user:pass@tcp(vtgate:3306)/props?tls=preferred", wantTLS: "preferred"},
		{name: "preferred", dsn: "user:pass@tcp(vtgate:3306)/props", mode: TLSModePreferred, wantTLS: "preferred"},
		{name: "required replaces existing", dsn: "user:pass@tcp(vtgate:3306)/props?tls=false", mode: TLSModeRequired, wantTLS: "skip-verify"},
		{name: "disabled", dsn: "user:pass@tcp(vtgate:3306)/props?tls=true", mode: TLSModeDisabled, wantTLS: "false"},
		{name: "verify-ca without file", dsn: "user@tcp(db:3306)/props", mode: TLSModeVerifyCA, wantTLS: tlsConfigName},
		{name: "unknown mode", dsn: "user@tcp(db:3306)/props", mode: "sometimes", wantErr: true},
		{name: "missing ca file", dsn: "user@tcp(db:3306)/props", mode: TLSModeVerifyCA, wantErr: true},
		{name: "bad dsn", dsn: "not a dsn", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig(tc.dsn)
			cfg.TLSMode = tc.mode
			if tc.name == "missing ca file" {
				cfg.TLSCAFile = "/nonexistent/ca.pem"
			}

			dsn, err := buildDSN(cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			parsed, err := mysql.ParseDSN(dsn)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTLS, parsed.TLSConfig)
			assert.Equal(t, "props", parsed.DBName)
		})
	}
}
