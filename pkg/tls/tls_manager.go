// Package tls configures HTTPS for the websocket server, either with
// certificate files or with Let's Encrypt through autocert.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"golang.org/x/crypto/acme/autocert"

	"github.com/antibyte/retrocpc/pkg/configuration"
	"github.com/antibyte/retrocpc/pkg/logger"
)

// Config is the [TLS] section.
type Config struct {
	Enabled      bool
	LetsEncrypt  bool
	Domain       string
	Email        string
	CacheDir     string
	CertFile     string
	KeyFile      string
	RedirectHTTP bool
	HTTPAddr     string
	HTTPSPort    string
}

// LoadConfig reads the [TLS] section.
func LoadConfig() Config {
	return Config{
		Enabled:      configuration.GetBool("TLS", "enable_tls", false),
		LetsEncrypt:  configuration.GetBool("TLS", "enable_letsencrypt", false),
		Domain:       configuration.GetString("TLS", "domain", ""),
		Email:        configuration.GetString("TLS", "letsencrypt_email", ""),
		CacheDir:     configuration.GetString("TLS", "cert_cache_dir", "./certs"),
		CertFile:     configuration.GetString("TLS", "cert_file", "./certs/server.crt"),
		KeyFile:      configuration.GetString("TLS", "key_file", "./certs/server.key"),
		RedirectHTTP: configuration.GetBool("TLS", "force_https_redirect", false),
		HTTPAddr:     configuration.GetString("TLS", "http_addr", ":80"),
		HTTPSPort:    configuration.GetString("TLS", "https_port", "443"),
	}
}

// Manager holds the server side TLS setup.
type Manager struct {
	config      Config
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
}

// NewManager validates cfg and prepares certificates. A disabled config
// yields a manager that serves plain HTTP.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{config: cfg}
	if !cfg.Enabled {
		return m, nil
	}
	var err error
	if cfg.LetsEncrypt {
		err = m.initLetsEncrypt()
	} else {
		err = m.initCertFiles()
	}
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}
	return m, nil
}

func (m *Manager) initLetsEncrypt() error {
	cfg := m.config
	if strings.TrimSpace(cfg.Domain) == "" {
		return errors.New("domain is required for Let's Encrypt")
	}
	if strings.TrimSpace(cfg.Email) == "" {
		return errors.New("letsencrypt_email is required for Let's Encrypt")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0700); err != nil {
		return fmt.Errorf("certificate cache: %w", err)
	}
	logger.ServerInfo("Let's Encrypt for %s, cache %s", cfg.Domain, cfg.CacheDir)

	m.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(cfg.CacheDir),
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.Email,
		HostPolicy: autocert.HostWhitelist(cfg.Domain, "www."+cfg.Domain),
	}
	m.tlsConfig = &tls.Config{
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			// ohne SNI die konfigurierte Domain verwenden
			if hello.ServerName == "" {
				hello.ServerName = cfg.Domain
			}
			cert, err := m.autocertMgr.GetCertificate(hello)
			if err != nil {
				logger.ServerWarn("certificate for %s: %v", hello.ServerName, err)
				return nil, err
			}
			return cert, nil
		},
		NextProtos: []string{"h2", "http/1.1", "acme-tls/1"},
		MinVersion: tls.VersionTLS12,
	}
	return nil
}

func (m *Manager) initCertFiles() error {
	cfg := m.config
	for _, f := range []string{cfg.CertFile, cfg.KeyFile} {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("certificate file: %w", err)
		}
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	m.tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	logger.ServerInfo("TLS with certificate %s", cfg.CertFile)
	return nil
}

// Enabled reports whether the server should listen with TLS.
func (m *Manager) Enabled() bool { return m.config.Enabled }

// TLSConfig returns the server TLS configuration, nil when disabled.
func (m *Manager) TLSConfig() *tls.Config { return m.tlsConfig }

// NeedsHTTPServer reports whether a plain HTTP listener is required for ACME
// challenges or redirects.
func (m *Manager) NeedsHTTPServer() bool {
	return m.config.Enabled && (m.config.LetsEncrypt || m.config.RedirectHTTP)
}

// HTTPAddr is the address of the plain HTTP listener.
func (m *Manager) HTTPAddr() string { return m.config.HTTPAddr }

// HTTPHandler answers ACME challenges and redirects everything else to HTTPS.
func (m *Manager) HTTPHandler() http.Handler {
	redirect := m.RedirectHandler()
	if m.autocertMgr != nil {
		return m.autocertMgr.HTTPHandler(redirect)
	}
	return redirect
}

// RedirectHandler sends clients to the HTTPS address of the same host.
func (m *Manager) RedirectHandler() http.Handler {
	port := m.config.HTTPSPort
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		target := "https://" + host
		if port != "" && port != "443" {
			target += ":" + port
		}
		target += r.URL.RequestURI()
		logger.ServerDebug("redirect %s -> %s", r.URL.String(), target)
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}
