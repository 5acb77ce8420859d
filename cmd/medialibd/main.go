// Command medialibd serves the HTTP/JSON media library API described by
// the configured set of mounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"medialib/pkg/changemonitor"
	"medialib/pkg/configuration"
	"medialib/pkg/externalsearch"
	"medialib/pkg/housekeeping"
	"medialib/pkg/library"
	"medialib/pkg/logging"
	"medialib/pkg/manager"

	apipkg "medialib/pkg/api"
)

// terminationSignals are the signals that trigger a graceful shutdown.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	configPath := flag.String("config", "", "path to the mount configuration file (default: ~/.medialib.yml)")
	logLevel := flag.String("log-level", "info", "log level: disabled, error, warn, info, debug")
	listen := flag.String("listen", "", "override the server.listen address from the configuration file")
	authToken := flag.String("auth-token", "", "override the server.authToken from the configuration file")
	flag.Parse()

	logger := logging.RootLogger
	if level, ok := logging.NameToLevel(*logLevel); ok {
		logger.SetLevel(level)
	} else {
		logger.Warn(fmt.Errorf("unrecognized log level %q, defaulting to info", *logLevel))
	}

	if err := run(logger, *configPath, *listen, *authToken); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func run(logger *logging.Logger, configPath, listenOverride, authTokenOverride string) error {
	if configPath == "" {
		defaultPath, err := configuration.DefaultConfigurationPath()
		if err != nil {
			return fmt.Errorf("unable to determine default configuration path: %w", err)
		}
		configPath = defaultPath
	}

	config, err := configuration.Load(configPath)
	if err != nil {
		return fmt.Errorf("unable to load configuration from %s: %w", configPath, err)
	}
	if len(config.Mounts) == 0 {
		return fmt.Errorf("configuration %s defines no mounts", configPath)
	}

	idleWriteInterval, err := config.IdleWriteInterval()
	if err != nil {
		return err
	}
	fileUpdateDebounce, err := config.FileUpdateDebounce()
	if err != nil {
		return err
	}

	locate := externalsearch.NewLocateBackend(5 * time.Second)

	libraries := make([]*library.Library, 0, len(config.Mounts))
	for _, mount := range config.Mounts {
		mountLogger := logger.Sublogger(mount.Name)

		dbPath := mount.Database
		if dbPath == "" {
			dbPath = mount.Root + "/.medialib-index.db"
		}

		var external externalsearch.Backend
		if mount.ExternalSearch == "locate" {
			external = locate
		}

		lib, err := library.Open(library.Config{
			Name:               mount.Name,
			Root:               mount.Root,
			DBPath:             dbPath,
			External:           external,
			Logger:             mountLogger,
			IdleWriteInterval:  idleWriteInterval,
			FileUpdateDebounce: fileUpdateDebounce,
			MaxProbeSize:       uint64(config.Tuning.MaxProbeSize),
		})
		if err != nil {
			return fmt.Errorf("unable to open library %q: %w", mount.Name, err)
		}

		monitor := newMonitor(mount.Root, mountLogger)
		lib.StartWatching(monitor)

		libraries = append(libraries, lib)
	}

	mgr := manager.New(libraries, config.Server.MaxCachedPages, logger.Sublogger("manager"))
	defer func() {
		if err := mgr.Shutdown(); err != nil {
			logger.Warn(err)
		}
	}()

	housekeepingCtx, cancelHousekeeping := context.WithCancel(context.Background())
	defer cancelHousekeeping()
	go housekeeping.Run(housekeepingCtx, "refresh", 24*time.Hour, logger, func() error {
		for _, lib := range mgr.Libraries() {
			if err := lib.Refresh(lib.Root(), true, nil); err != nil {
				return err
			}
		}
		return nil
	})

	listenAddress := config.Server.Listen
	if listenOverride != "" {
		listenAddress = listenOverride
	}
	if listenAddress == "" {
		listenAddress = ":8000"
	}

	authToken := config.Server.AuthToken
	if authTokenOverride != "" {
		authToken = authTokenOverride
	}
	server := apipkg.NewServer(mgr, config.Server.BaseURL, config.Server.PageSize, authToken, logger.Sublogger("api"))
	httpServer := &http.Server{
		Addr:         listenAddress,
		Handler:      server.Handler(),
		ReadTimeout:  apipkg.ReadTimeout,
		IdleTimeout:  apipkg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", listenAddress)
		serveErr <- httpServer.ListenAndServe()
	}()

	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, terminationSignals...)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-terminate:
		logger.Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn(err)
		}
	}

	return nil
}

// newMonitor picks NativeWatcher on Linux (inotify-backed) and falls back to
// PollWatcher everywhere else.
func newMonitor(root string, logger *logging.Logger) changemonitor.Monitor {
	if runtime.GOOS == "linux" {
		if monitor, err := changemonitor.NewNativeWatcher(root, logger); err == nil {
			return monitor
		} else {
			logger.Warn(err)
		}
	}
	return changemonitor.NewPollWatcher(root, 2*time.Second, logger)
}
