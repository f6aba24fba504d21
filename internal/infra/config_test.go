package infra

import "testing"

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("AI_GATEWAY_API_KEY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("unexpected port: %q", cfg.Port)
	}
	if cfg.BatchSize != 10 {
		t.Fatalf("unexpected batch size: %d", cfg.BatchSize)
	}
	if cfg.WorkerPollSeconds != 2 {
		t.Fatalf("unexpected poll interval: %d", cfg.WorkerPollSeconds)
	}
	// Missing gateway credentials must not fail startup.
	if cfg.GatewayAPIKey != "" {
		t.Fatalf("unexpected api key: %q", cfg.GatewayAPIKey)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("BATCH_SIZE", "4")
	t.Setenv("RENDER_MODEL", "custom/model")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BatchSize != 4 {
		t.Fatalf("unexpected batch size: %d", cfg.BatchSize)
	}
	if cfg.RenderModel != "custom/model" {
		t.Fatalf("unexpected render model: %q", cfg.RenderModel)
	}
}
