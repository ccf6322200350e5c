package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"periph.io/x/conn/v3/physic"
)

func TestLoadConfigFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	store := filepath.Join(t.TempDir(), "store")
	t.Setenv("NIXIE_PIN_SET", "5")
	t.Setenv("NIXIE_TIME_ZONE", "UTC")
	t.Setenv("NIXIE_STORE_PATH", store)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got, want := cfg.PinSet, 5; got != want {
		t.Errorf("set pin:\n  got: %v\n want: %v", got, want)
	}
	if got, want := cfg.PinAdv, 27; got != want {
		t.Errorf("adv pin:\n  got: %v\n want: %v", got, want)
	}
	if got, want := cfg.Location, time.UTC; got != want {
		t.Errorf("location:\n  got: %v\n want: %v", got, want)
	}
	if got, want := cfg.StorePath, store; got != want {
		t.Errorf("store path:\n  got: %v\n want: %v", got, want)
	}
	if got, want := cfg.Subtick, 32*time.Microsecond; got != want {
		t.Errorf("subtick:\n  got: %v\n want: %v", got, want)
	}
	if got, want := cfg.SPISpeed, physic.MegaHertz; got != want {
		t.Errorf("spi speed:\n  got: %v\n want: %v", got, want)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	content := "pin_adv: 6\npin_power: -1\nsubtick: 1ms\nstore_path: " + filepath.Join(dir, "store") + "\n"
	if err := os.WriteFile(filepath.Join(dir, ".nixie-clock.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NIXIE_CONFIG_PATH", dir)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got, want := cfg.PinAdv, 6; got != want {
		t.Errorf("adv pin:\n  got: %v\n want: %v", got, want)
	}
	if got, want := cfg.PinPower, -1; got != want {
		t.Errorf("power pin:\n  got: %v\n want: %v", got, want)
	}
	if got, want := cfg.Subtick, time.Millisecond; got != want {
		t.Errorf("subtick:\n  got: %v\n want: %v", got, want)
	}
}

func TestLoadConfigRejectsBadSubtick(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NIXIE_SUBTICK", "0s")
	t.Setenv("NIXIE_STORE_PATH", t.TempDir())
	if _, err := loadConfig(); err == nil {
		t.Error("expected an error for a zero subtick interval")
	}
}
