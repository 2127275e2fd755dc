package main

import (
	"context"
	"crypto"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/djpki/ejbca-rest-gateway/internal/alogger"
	"github.com/djpki/ejbca-rest-gateway/internal/api"
	"github.com/djpki/ejbca-rest-gateway/internal/certgen"
	"github.com/djpki/ejbca-rest-gateway/internal/db"
	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

const (
	defaultListenAddr      = ":8000"
	defaultShutdownTimeout = 10 * time.Second
)

func main() {
	log.SetPrefix(fmt.Sprintf("%s: ", appName))
	log.SetFlags(0)

	flag.Usage = usage
	flag.Parse()

	// Process special-purpose flags.
	switch {
	case *fHelp:
		usage()
		return

	case *fSampleConfig:
		sampleConfig()
		return

	case *fVersion:
		version()
		return
	}

	// Load and process configuration.
	if *fConfig == "" {
		log.Fatalf("no configuration file specified, see -%s", helpFlag)
	}
	cfg, err := configFromFile(*fConfig)
	if err != nil {
		log.Fatalf("failed to read configuration file: %v", err)
	}

	// Create logger. If no log file was specified, log to standard error.
	var logWriter io.Writer = os.Stderr
	if cfg.Logfile != "" {
		f, err := os.OpenFile(cfg.Logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		logWriter = f
	}
	logger := alogger.New(logWriter, logLevel(cfg.LogLevel))

	// Create the EJBCA client and attempt the first connection. Startup
	// continues when the CA is unreachable; the client re-initializes
	// lazily on the first dispatch.
	client := ejbca.New(ejbca.Config{
		Host:           cfg.EJBCA.Host,
		Port:           cfg.EJBCA.Port,
		Protocol:       cfg.EJBCA.Protocol,
		BundlePath:     cfg.EJBCA.BundlePath,
		BundlePassword: cfg.EJBCA.BundlePassword,
		Timeout:        time.Duration(cfg.EJBCA.Timeout) * time.Second,
	}, logger)

	if !client.Initialize(context.Background()) {
		logger.Errorf("certificate authority connection failed, continuing degraded")
	}

	// Load the renewal signing key when configured.
	var renewalKey crypto.Signer
	if cfg.Server != nil && cfg.Server.RenewalKeyFile != "" {
		renewalKey, err = certgen.LoadSigner(cfg.Server.RenewalKeyFile)
		if err != nil {
			log.Fatalf("failed to load renewal key: %v", err)
		}
	}

	// Open the audit store when configured.
	var store *db.DB
	dbType := ""
	if cfg.Database != nil {
		store, err = db.NewDB(cfg.Database.Type, cfg.Database.DSN, logger)
		if err != nil {
			log.Fatalf("failed to open audit database: %v", err)
		}
		defer store.Close()
		dbType = cfg.Database.Type
	}

	server := api.NewServer(api.Config{
		Client:     client,
		Store:      store,
		Logger:     logger,
		RateLimit:  cfg.RateLimit,
		RenewalKey: renewalKey,
		Info: api.Info{
			Version:    versionString,
			ServiceURL: client.Status().ServiceURL,
			BundlePath: cfg.EJBCA.BundlePath,
			DBType:     dbType,
		},
	})

	listenAddr := defaultListenAddr
	if cfg.Server != nil && cfg.Server.ListenAddr != "" {
		listenAddr = cfg.Server.ListenAddr
	}

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	logger.Infow("starting gateway", "listen", listenAddr, "version", versionString)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for signal.
	got := <-stop

	// Shutdown server.
	logger.Infof("Closing gateway with signal %v", got)

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

func logLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
