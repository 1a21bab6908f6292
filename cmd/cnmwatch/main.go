// Command cnmwatch polls the Church Network Manager portal for firewall and
// SSID password status and emails a notification whenever either changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/cnmwatch/internal/config"
	"github.com/HerbHall/cnmwatch/internal/monitor"
	"github.com/HerbHall/cnmwatch/internal/notify"
	"github.com/HerbHall/cnmwatch/internal/portal"
	"github.com/HerbHall/cnmwatch/internal/server"
	"github.com/HerbHall/cnmwatch/internal/state"
	"github.com/HerbHall/cnmwatch/internal/store"
	"github.com/HerbHall/cnmwatch/internal/version"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to the JSON secrets file (default $"+config.SecretsPathEnv+" or "+config.DefaultSecretsPath+")")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration before the logger so level/format can be configured.
	v, source, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("===== cnmwatch starting =====", zap.String("version", version.Short()))
	if source != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", source))
	} else {
		logger.Info("no secrets file found, using environment and defaults", zap.String("component", "config"))
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		logger.Error("configuration error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("cnmwatch stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("cnmwatch stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	statuses, err := openStateStore(ctx, cfg.State, logger.Named("state"))
	if err != nil {
		return err
	}
	defer statuses.Close()

	browser := portal.NewBrowserAuthenticator(cfg.Portal.URL, cfg.Portal.BrowserBin, cfg.Portal.LoginTimeout, logger.Named("browser"))
	session, err := portal.NewSession(portal.SessionConfig{
		PortalURL:      cfg.Portal.URL,
		AuthURL:        cfg.Portal.AuthURL,
		Username:       cfg.Portal.Username,
		Password:       cfg.Portal.Password,
		RequestTimeout: cfg.Portal.RequestTimeout,
	}, browser, logger.Named("session"))
	if err != nil {
		return fmt.Errorf("create portal session: %w", err)
	}
	client, err := portal.NewClient(session, portal.ClientConfig{SSIDName: cfg.Portal.SSID}, logger.Named("portal"))
	if err != nil {
		return fmt.Errorf("create portal client: %w", err)
	}

	transport, err := newTransport(cfg.Mail, logger.Named("mail"))
	if err != nil {
		return err
	}
	mailer := notify.NewMailer(transport, cfg.Portal.SSID, logger.Named("notify"))
	dispatcher := notify.NewDispatcher(statuses, mailer, logger.Named("notify"))

	mon, err := monitor.New(monitor.Config{
		NetworkIDs:       cfg.Portal.Firewalls,
		NormalInterval:   cfg.Poll.NormalInterval,
		DegradedInterval: cfg.Poll.DegradedInterval,
	}, client, dispatcher, dispatcher, logger.Named("monitor"))
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}

	if cfg.MetricsAddr != "" {
		srv := server.New(cfg.MetricsAddr, logger.Named("server"), func(context.Context) error { return mon.Ready() }, mon)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("operations server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("operations server shutdown", zap.Error(err))
			}
		}()
	}

	return mon.Run(ctx)
}

// openStateStore returns the status backend selected by cfg.Driver.
func openStateStore(ctx context.Context, cfg config.StateConfig, logger *zap.Logger) (state.Store, error) {
	switch cfg.Driver {
	case "", "file":
		logger.Info("using file state store", zap.String("dir", cfg.Dir))
		return state.NewFileStore(cfg.Dir), nil
	case "sqlite":
		db, err := store.Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open state database: %w", err)
		}
		if err := db.CheckVersion(ctx, version.Short()); err != nil {
			db.Close()
			return nil, err
		}
		s, err := state.NewSQLiteStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("prepare state database: %w", err)
		}
		logger.Info("using sqlite state store", zap.String("dsn", cfg.DSN))
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown state driver %q", config.ErrConfig, cfg.Driver)
	}
}

// newTransport sends mail over SMTP when a server is configured and logs
// messages otherwise.
func newTransport(cfg config.MailConfig, logger *zap.Logger) (notify.Transport, error) {
	if !cfg.Enabled() {
		logger.Warn("mail not configured, notifications will only be logged")
		return notify.NewLogTransport(logger), nil
	}
	sender := cfg.Sender
	if sender == "" {
		sender = cfg.Username
	}
	t, err := notify.NewSMTPTransport(notify.SMTPConfig{
		Host:       cfg.Host,
		Port:       cfg.Port,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Sender:     sender,
		Recipients: cfg.Recipients,
	})
	if err != nil {
		return nil, errors.Join(config.ErrConfig, err)
	}
	logger.Info("mail delivery via SMTP",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("recipients", len(cfg.Recipients)),
	)
	return t, nil
}
