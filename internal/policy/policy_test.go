package policy

import "testing"

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaults: %v", err)
	}
	if cfg.Synthesis.DedupCutoff != 0.7 {
		t.Errorf("DedupCutoff = %f, want 0.7", cfg.Synthesis.DedupCutoff)
	}
	if cfg.Loop.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d, want 4", cfg.Loop.MaxWorkers)
	}
}

func TestValidateClampsOutOfRange(t *testing.T) {
	cfg := &Config{}
	cfg.Synthesis.DedupCutoff = 1.5
	cfg.Loop.MaxWorkers = -1

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(): %v", err)
	}
	if cfg.Synthesis.DedupCutoff != 0.7 {
		t.Errorf("DedupCutoff = %f, want clamped 0.7", cfg.Synthesis.DedupCutoff)
	}
	if cfg.Loop.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d, want clamped 4", cfg.Loop.MaxWorkers)
	}
	if cfg.Parsing.MinItemLength != 6 {
		t.Errorf("MinItemLength = %d, want 6", cfg.Parsing.MinItemLength)
	}
}

func TestValidateRejectsUnknownResolver(t *testing.T) {
	cfg := Default()
	cfg.Synthesis.Resolver = "coin-flip"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted unknown resolver")
	}
}

func TestAllowResource(t *testing.T) {
	cfg := Default()

	cases := []struct {
		resource string
		want     bool
	}{
		{"src/auth.ts", true},
		{".git/config", false},
		{"deploy/.env", false},
		{"config/secrets.yaml", false},
		{"docs/readme.md", true},
	}
	for _, tc := range cases {
		if got := cfg.AllowResource(tc.resource); got != tc.want {
			t.Errorf("AllowResource(%q) = %v, want %v", tc.resource, got, tc.want)
		}
	}
}
