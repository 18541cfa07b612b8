package configuration

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.cfg")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	if got := cfg.settings["VM"]["stop_count"]; got != "5" {
		t.Errorf("stop_count = %q, want 5", got)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg := &Config{settings: make(map[string]map[string]string)}
	cfg.createDefaultConfig()

	input := `
; comment
[VM]
stop_count = 7
# another comment
[Server]
listen_addr = 127.0.0.1:9000
`
	if err := cfg.parse(bufio.NewScanner(strings.NewReader(input))); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := cfg.settings["VM"]["stop_count"]; got != "7" {
		t.Errorf("stop_count = %q, want 7", got)
	}
	if got := cfg.settings["VM"]["frame_time_ms"]; got != "20" {
		t.Errorf("frame_time_ms = %q, default should survive", got)
	}
	if got := cfg.settings["Server"]["listen_addr"]; got != "127.0.0.1:9000" {
		t.Errorf("listen_addr = %q", got)
	}
}

func TestGettersFallBackWithoutConfig(t *testing.T) {
	saved := globalConfig
	globalConfig = nil
	defer func() { globalConfig = saved }()

	if got := GetInt("VM", "stop_count", 5); got != 5 {
		t.Errorf("GetInt = %d, want default 5", got)
	}
	if got := GetBool("Debug", "missing", true); !got {
		t.Error("GetBool should return default")
	}
	if got := GetString("Server", "listen_addr", ":1"); got != ":1" {
		t.Errorf("GetString = %q", got)
	}
}

func TestTypedGetters(t *testing.T) {
	saved := globalConfig
	globalConfig = &Config{settings: map[string]map[string]string{
		"Driver": {"key_poll_interval": "15ms", "bad": "xx"},
		"VM":     {"stop_count": "3", "ratio": "0.5"},
	}}
	defer func() { globalConfig = saved }()

	if got := GetDuration("Driver", "key_poll_interval", 0); got.Milliseconds() != 15 {
		t.Errorf("GetDuration = %v", got)
	}
	if got := GetDuration("Driver", "bad", 42); got != 42 {
		t.Errorf("GetDuration should fall back on parse error, got %v", got)
	}
	if got := GetInt("VM", "stop_count", 5); got != 3 {
		t.Errorf("GetInt = %d", got)
	}
	if got := GetFloat("VM", "ratio", 1); got != 0.5 {
		t.Errorf("GetFloat = %v", got)
	}
}

func TestReloadPicksUpEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.cfg")
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	saved := globalConfig
	globalConfig = cfg
	defer func() { globalConfig = saved }()

	if err := os.WriteFile(path, []byte("[VM]\nstop_count = 9\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := GetInt("VM", "stop_count", 5); got != 9 {
		t.Errorf("stop_count = %d, want 9", got)
	}
	if got := GetString("Server", "listen_addr", ""); got == "" {
		t.Error("defaults lost on reload")
	}
}
