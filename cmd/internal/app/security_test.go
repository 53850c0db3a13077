package app

import (
	"strings"
	"testing"
)

func TestValidateSecurityConfig(t *testing.T) {
	t.Parallel()

	secret := strings.Repeat("s", 32)
	hashKey := strings.Repeat("k", 32)

	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid secret only", cfg: Config{AuthMasterSecret: secret}},
		{name: "valid secret and hash key", cfg: Config{AuthMasterSecret: secret, SessionTokenHashKey: hashKey}},
		{name: "missing secret", cfg: Config{}, wantErr: true},
		{name: "whitespace secret", cfg: Config{AuthMasterSecret: "   "}, wantErr: true},
		{name: "short secret", cfg: Config{AuthMasterSecret: strings.Repeat("s", 31)}, wantErr: true},
		{name: "short hash key", cfg: Config{AuthMasterSecret: secret, SessionTokenHashKey: "too-short"}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateSecurityConfig(tc.cfg)
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
