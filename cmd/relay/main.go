package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/elchemista/FormRelay/internal/config"
	"github.com/elchemista/FormRelay/internal/log"
	"github.com/elchemista/FormRelay/internal/server"
)

const (
	defaultAddr   = ":8080"
	defaultConfig = "config.json"
)

func main() {
	rc := parseConfig()

	logger := log.New(rc.logLevel, rc.logFormat)

	conf, configSource, err := loadConfig(rc.configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded", "source", configSource, "forms", len(conf.Forms))

	if err := conf.Validate(); err != nil {
		logger.Error("validate config", "error", err)
		os.Exit(1)
	}

	if missing := conf.Mailgun.Missing(); len(missing) > 0 {
		logger.Warn("mailgun credentials missing, submissions will be rejected", "missing", strings.Join(missing, ", "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancelOpen := context.WithTimeout(ctx, 15*time.Second)
	caps, closeCaps, err := server.OpenCapabilities(openCtx, conf, logger)
	cancelOpen()
	if err != nil {
		logger.Error("open backends", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeCaps(); err != nil {
			logger.Error("close backends", "error", err)
		}
	}()

	srv, err := server.New(conf, caps, logger)
	if err != nil {
		logger.Error("initialise server", "error", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              rc.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}

		close(done)
	}()

	logger.Info("server starting", "addr", rc.addr)

	err = httpSrv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("server stopped")
}

type runtimeConfig struct {
	configPath string
	addr       string
	logLevel   string
	logFormat  string
}

type stringFlag struct {
	value string
	set   bool
}

func (s *stringFlag) String() string { return s.value }

func (s *stringFlag) Set(v string) error {
	s.value = strings.TrimSpace(v)
	s.set = true
	return nil
}

func parseConfig() runtimeConfig {
	configDefault := envOrDefault("CONFIG", defaultConfig)
	addrDefault := envOrDefault("ADDR", "")
	if addrDefault == "" {
		if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
			if strings.HasPrefix(port, ":") {
				addrDefault = port
			} else {
				addrDefault = ":" + port
			}
		}
	}
	if addrDefault == "" {
		addrDefault = defaultAddr
	}

	configFlag := &stringFlag{value: configDefault}
	addrFlag := &stringFlag{value: addrDefault}

	flag.Var(configFlag, "config", "path to configuration file (JSON, or YAML by extension)")
	flag.Var(addrFlag, "addr", "address to listen on (host:port)")
	logLevel := flag.String("log-level", envOrDefault("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("LOG_FORMAT", log.FormatText), "log format (text, json, pretty)")

	flag.Parse()

	return runtimeConfig{
		configPath: configFlag.value,
		addr:       addrFlag.value,
		logLevel:   *logLevel,
		logFormat:  *logFormat,
	}
}

func envOrDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// loadConfig reads path, falling back to an empty configuration when the file
// does not exist so the relay can run from environment variables alone.
func loadConfig(path string) (*config.Config, string, error) {
	cleanPath := strings.TrimSpace(path)

	var (
		conf   *config.Config
		source string
	)

	if cleanPath != "" {
		loaded, err := config.Load(cleanPath)
		switch {
		case err == nil:
			conf, source = loaded, cleanPath
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, "", err
		}
	}

	if conf == nil {
		conf = config.Default()
		conf.WithSource("environment")
		conf.WithLoadedTime(time.Now().UTC())
		source = "environment"
		if cleanPath != "" {
			source = fmt.Sprintf("environment (no file at %s)", cleanPath)
		}
	}

	if err := conf.ApplyEnv(os.Getenv); err != nil {
		return nil, "", fmt.Errorf("environment overrides: %w", err)
	}

	return conf, source, nil
}
