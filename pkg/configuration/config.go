// Package configuration reads the sectioned settings file ("[Section]" +
// "key = value" lines). Missing files are created with the defaults; a
// settings.local.cfg next to the main file overrides single values.
package configuration

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config verwaltet die Anwendungskonfiguration
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// sectionOrder is the order in which sections are written back to disk.
var sectionOrder = []string{"VM", "Driver", "Storage", "Server", "Auth", "TLS", "Debug"}

// Initialize loads configPath once; later calls are no-ops.
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		var cfg *Config
		if cfg, err = load(configPath); err == nil {
			globalConfig = cfg
		}
	})
	return err
}

// Reload liest die Datei erneut ein. Getter sehen danach die neuen Werte.
func Reload() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}
	fresh, err := load(globalConfig.filePath)
	if err != nil {
		return err
	}
	globalConfig.mu.Lock()
	globalConfig.settings = fresh.settings
	globalConfig.mu.Unlock()
	return nil
}

// load reads the main file and the optional local overrides.
func load(configPath string) (*Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	local := filepath.Join(filepath.Dir(configPath), "settings.local.cfg")
	if _, statErr := os.Stat(local); statErr == nil {
		if err := cfg.readFile(local); err != nil {
			return nil, fmt.Errorf("failed to load local config: %w", err)
		}
	}
	return cfg, nil
}

// loadConfig returns the defaults overlaid with filePath. A missing file is
// written with the defaults.
func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	config.createDefaultConfig()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}
	if err := config.readFile(filePath); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) readFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parse(bufio.NewScanner(file))
}

// parse reads "[Section]" headers and "key = value" pairs. Values override defaults.
func (c *Config) parse(scanner *bufio.Scanner) error {
	section := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "", line[0] == ';', line[0] == '#':
			// Kommentar
		case line[0] == '[' && line[len(line)-1] == ']':
			section = strings.TrimSpace(line[1 : len(line)-1])
			if c.settings[section] == nil {
				c.settings[section] = make(map[string]string)
			}
		case section != "":
			key, value, ok := strings.Cut(line, "=")
			if ok {
				c.settings[section][strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
		}
	}
	return scanner.Err()
}

// createDefaultConfig erstellt die Standard-Konfiguration
func (c *Config) createDefaultConfig() {
	c.settings["VM"] = map[string]string{
		"frame_time_ms":    "20",
		"stop_count":       "5",
		"max_print_buffer": "65536",
	}

	c.settings["Driver"] = map[string]string{
		"key_poll_interval":   "20ms",
		"sound_poll_interval": "20ms",
	}

	c.settings["Storage"] = map[string]string{
		"db_path":            "retrocpc.db",
		"snapshot_retention": "50",
	}

	c.settings["Server"] = map[string]string{
		"listen_addr":         ":8080",
		"write_wait_timeout":  "10s",
		"pong_timeout":        "90s",
		"max_message_size_kb": "64",
		"max_sessions":        "50",
		"render_interval":     "50ms",
		"allowed_origins":     "http://localhost:8080,http://127.0.0.1:8080",
	}

	c.settings["Auth"] = map[string]string{
		"require_token":          "false",
		"secret_key":             "",
		"token_expiration_hours": "24",
	}

	c.settings["TLS"] = map[string]string{
		"enable_tls":           "false",
		"enable_letsencrypt":   "false",
		"domain":               "",
		"letsencrypt_email":    "",
		"cert_cache_dir":       "./certs",
		"cert_file":            "./certs/server.crt",
		"key_file":             "./certs/server.key",
		"force_https_redirect": "false",
		"http_addr":            ":80",
		"https_port":           "443",
	}

	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "debug.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		// Selektive Logging-Bereiche
		"log_vm":        "false",
		"log_timer":     "false",
		"log_scheduler": "false",
		"log_window":    "false",
		"log_sound":     "false",
		"log_driver":    "true",
		"log_storage":   "true",
		"log_server":    "true",
		"log_auth":      "true",
		"log_config":    "true",
		"log_general":   "true",
	}
}

// saveToFile schreibt alle Sektionen in fester Reihenfolge, Schlüssel sortiert.
func (c *Config) saveToFile() error {
	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return err
	}
	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintln(w, "; retrocpc configuration file")
	fmt.Fprintln(w, "; Generated automatically - modify with care")
	fmt.Fprintln(w, ";")
	fmt.Fprintln(w)

	for _, section := range sectionOrder {
		settings, ok := c.settings[section]
		if !ok {
			continue
		}
		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(w, "[%s]\n", section)
		for _, key := range keys {
			fmt.Fprintf(w, "%s = %s\n", key, settings[key])
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

// lookup returns the parsed value of section/key, or def if the key is
// missing, empty or does not parse.
func lookup[T any](section, key string, def T, parse func(string) (T, error)) T {
	cfg := globalConfig
	if cfg == nil {
		return def
	}
	cfg.mu.RLock()
	raw, ok := cfg.settings[section][key]
	cfg.mu.RUnlock()
	if !ok || raw == "" {
		return def
	}
	value, err := parse(raw)
	if err != nil {
		return def
	}
	return value
}

// GetString returns the raw value. An empty value counts as unset.
func GetString(section, key, defaultValue string) string {
	return lookup(section, key, defaultValue, func(s string) (string, error) { return s, nil })
}

func GetInt(section, key string, defaultValue int) int {
	return lookup(section, key, defaultValue, strconv.Atoi)
}

func GetFloat(section, key string, defaultValue float64) float64 {
	return lookup(section, key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// GetBool accepts everything strconv.ParseBool does ("1", "true", "F", ...).
func GetBool(section, key string, defaultValue bool) bool {
	return lookup(section, key, defaultValue, strconv.ParseBool)
}

// GetDuration parses Go durations like "20ms" or "10s".
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	return lookup(section, key, defaultValue, time.ParseDuration)
}
