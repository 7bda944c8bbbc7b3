package config

import (
	"errors"
	"testing"
	"time"
)

func loadWith(t *testing.T, env map[string]string) (Config, error) {
	t.Helper()
	return Load(
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(env),
	)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadWith(t, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Wizard.SessionBackend != SessionBackendMemory {
		t.Fatalf("session backend = %q, want memory", cfg.Wizard.SessionBackend)
	}
	if cfg.Wizard.SessionTTL != 4*time.Hour {
		t.Fatalf("session ttl = %s, want 4h", cfg.Wizard.SessionTTL)
	}
	if !cfg.Features.UseBuiltinPriceList {
		t.Fatal("builtin price list should default on")
	}
	if cfg.Features.PublishOrderEvents {
		t.Fatal("order events should default off")
	}
	if cfg.PubSub.Topic != "order-events" {
		t.Fatalf("topic = %q", cfg.PubSub.Topic)
	}
	if cfg.Storage.PhotoURLTTL != 15*time.Minute {
		t.Fatalf("photo url ttl = %s, want 15m", cfg.Storage.PhotoURLTTL)
	}
	if cfg.Storage.MaxPhotoSizeMB != 10 {
		t.Fatalf("max photo size = %d, want 10", cfg.Storage.MaxPhotoSizeMB)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := loadWith(t, map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_WIZARD_SESSION_BACKEND":    "FIRESTORE",
		"API_FIRESTORE_PROJECT_ID":      "pureclean-prod",
		"API_WIZARD_SESSION_TTL":        "30m",
		"API_FEATURE_ORDER_EVENTS":      "true",
		"API_PUBSUB_ORDER_EVENTS_TOPIC": "orders-out",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Wizard.SessionBackend != SessionBackendFirestore {
		t.Fatalf("backend = %q, want firestore (lowered)", cfg.Wizard.SessionBackend)
	}
	if cfg.Wizard.SessionTTL != 30*time.Minute {
		t.Fatalf("session ttl = %s", cfg.Wizard.SessionTTL)
	}
	if cfg.PubSub.Topic != "orders-out" {
		t.Fatalf("topic = %q", cfg.PubSub.Topic)
	}
	if cfg.PubSub.ProjectID != "pureclean-prod" {
		t.Fatalf("pubsub project = %q, want fallback to firestore project", cfg.PubSub.ProjectID)
	}
}

func TestLoadRejectsFirestoreBackendWithoutProject(t *testing.T) {
	_, err := loadWith(t, map[string]string{
		"API_WIZARD_SESSION_BACKEND": "firestore",
	})
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if fields := invalid.Fields(); len(fields) == 0 {
		t.Fatal("expected named invalid fields")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := loadWith(t, map[string]string{
		"API_WIZARD_SESSION_BACKEND": "redis",
	})
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestLoadRequiresProjectForExternalPriceList(t *testing.T) {
	_, err := loadWith(t, map[string]string{
		"API_FEATURE_BUILTIN_PRICELIST": "false",
	})
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	cfg, err := loadWith(t, map[string]string{
		"API_FEATURE_BUILTIN_PRICELIST": "false",
		"API_FIRESTORE_EMULATOR_HOST":   "localhost:8085",
	})
	if err != nil {
		t.Fatalf("load with emulator host: %v", err)
	}
	if cfg.Features.UseBuiltinPriceList {
		t.Fatal("builtin price list should be off")
	}
}
