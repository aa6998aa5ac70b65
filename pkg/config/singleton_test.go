package config

import (
	"testing"
)

func TestInitialize(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	path := writeConfig(t, "mode: production\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config after initialization")
	}
	if cfg.Mode != "production" {
		t.Errorf("expected mode %q, got %q", "production", cfg.Mode)
	}
}

func TestInitialize_MultipleCallsIgnored(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	first := writeConfig(t, "mode: production\n")
	second := writeConfig(t, "mode: development\n")

	if err := Initialize(first); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}
	if err := Initialize(second); err != nil {
		t.Fatalf("second initialize returned error: %v", err)
	}
	if GetConfig().Mode != "production" {
		t.Errorf("second Initialize should be ignored, got mode %q", GetConfig().Mode)
	}
}

func TestInitialize_Error(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	if err := Initialize(writeConfig(t, "mode: staging\n")); err == nil {
		t.Fatal("expected error for invalid configuration")
	}
	if GetConfig() != nil {
		t.Error("failed initialization must not set the configuration")
	}
}

func TestReloadConfig(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	SetConfig(DefaultConfig())
	path := writeConfig(t, "mode: production\n")

	if err := ReloadConfig(path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if GetConfig().Mode != "production" {
		t.Errorf("expected reloaded mode, got %q", GetConfig().Mode)
	}

	if err := ReloadConfig(writeConfig(t, "mode: staging\n")); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig().Mode != "production" {
		t.Error("failed reload must keep the previous configuration")
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustGetConfig()
}
