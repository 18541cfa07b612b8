package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/antibyte/retrocpc/pkg/configuration"
	"github.com/antibyte/retrocpc/pkg/logger"
	"github.com/antibyte/retrocpc/pkg/server"
	"github.com/antibyte/retrocpc/pkg/storage"
	tlsmanager "github.com/antibyte/retrocpc/pkg/tls"
)

func main() {
	configPath := flag.String("config", "settings.cfg", "configuration file")
	serve := flag.Bool("serve", false, "run the websocket server instead of the console")
	run := flag.String("run", "", "run a program and exit")
	flag.Parse()

	// Konfiguration vor allen anderen Initialisierungen laden
	if err := configuration.Initialize(*configPath); err != nil {
		fmt.Printf("Error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.ConfigInfo("System started - Configuration loaded from: %s", *configPath)

	dbPath := configuration.GetString("Storage", "db_path", "retrocpc.db")
	store, err := storage.Open(dbPath)
	if err != nil {
		logger.Fatal(logger.AreaStorage, "Database initialization failed: %v", err)
	}
	defer store.Close()

	switch {
	case *serve:
		err = serveHTTP(store)
	case *run != "":
		err = runOnce(store, *run)
	case !term.IsTerminal(int(os.Stdin.Fd())):
		err = errors.New("the console needs a terminal, use -run NAME or -serve")
	default:
		err = newConsole(store).loop()
	}
	if err != nil {
		logger.Error(logger.AreaGeneral, "%v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serveHTTP runs the websocket server until SIGINT or SIGTERM.
func serveHTTP(store *storage.Store) error {
	tlsManager, err := tlsmanager.NewManager(tlsmanager.LoadConfig())
	if err != nil {
		return err
	}

	srv := server.New(store)
	addr := configuration.GetString("Server", "listen_addr", ":8080")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		TLSConfig:         tlsManager.TLSConfig(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if tlsManager.Enabled() {
			logger.ServerInfo("listening on %s (TLS)", addr)
			fmt.Printf("retrocpc server listening on %s (TLS)\n", addr)
			// Zertifikate kommen aus TLSConfig
			errCh <- httpServer.ListenAndServeTLS("", "")
			return
		}
		logger.ServerInfo("listening on %s", addr)
		fmt.Printf("retrocpc server listening on %s\n", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	var challengeServer *http.Server
	if tlsManager.NeedsHTTPServer() {
		challengeServer = &http.Server{
			Addr:              tlsManager.HTTPAddr(),
			Handler:           tlsManager.HTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.ServerInfo("HTTP redirect listener on %s", challengeServer.Addr)
			errCh <- challengeServer.ListenAndServe()
		}()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.ServerInfo("shutting down, %d sessions open", srv.SessionCount())
	srv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if challengeServer != nil {
		_ = challengeServer.Shutdown(shutdownCtx)
	}
	return httpServer.Shutdown(shutdownCtx)
}
