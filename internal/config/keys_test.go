package config

import "testing"

func TestGetAPIKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env-key")

	key, err := GetAPIKey(nil)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-env-key" {
		t.Errorf("key = %q", key)
	}
}

func TestGetAPIKeyFromConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-config-key"

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-config-key" {
		t.Errorf("key = %q", key)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := GetAPIKey(Default()); err != ErrNoAPIKey {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	cases := []struct {
		key     string
		wantErr bool
	}{
		{"", true},
		{"sk-ant-short", true},
		{"not-a-key-but-long-enough", true},
		{"sk-ant-REDACTED", false},
	}
	for _, tc := range cases {
		err := ValidateAPIKey(tc.key)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateAPIKey(%q) err = %v, wantErr = %v", tc.key, err, tc.wantErr)
		}
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("MaskAPIKey(empty) = %q", got)
	}
	if got := MaskAPIKey("sk-ant-short"); got != "****" {
		t.Errorf("MaskAPIKey(short) = %q", got)
	}
	if got := MaskAPIKey("sk-ant-api03-abcdefgh-wxyz"); got != "sk-ant-...wxyz" {
		t.Errorf("MaskAPIKey = %q", got)
	}
}
