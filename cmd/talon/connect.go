package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"talon/internal/version"
	"talon/pkg/config"
	"talon/pkg/eventlog"
	"talon/pkg/gateway"
)

// connectTimeout bounds the whole dial-plus-handshake sequence for CLI
// commands.
const connectTimeout = 30 * time.Second

// session wraps a connected client plus the optional event log recorder.
type session struct {
	client   *gateway.Client
	cfg      config.Config
	recorder *eventlog.Recorder
	writer   *eventlog.Writer
}

// dial loads the config, connects, and completes the handshake, reporting
// progress on stderr.
func dial(ctx context.Context) (*session, error) {
	path, err := config.Path()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log := newStartupLog(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()))
	stop := log.StartSpinner(fmt.Sprintf("connecting to %s", cfg.Gateway.URL))

	client := gateway.NewClient(gateway.Config{
		URL: cfg.Gateway.URL,
		Identity: gateway.Identity{
			ID:         clientID(cfg),
			Version:    version.String(),
			Mode:       "cli",
			InstanceID: uuid.NewString(),
		},
		Credentials: credentials(cfg),
		Logger:      slog.Default(),
	})

	certSub := client.On(gateway.EventCertError, func(p any) {
		if ce, ok := p.(*gateway.CertError); ok {
			log.Fail(fmt.Sprintf("certificate not trusted; open %s in a browser to accept it", ce.Probe))
		}
	})

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Connect(dialCtx); err != nil {
		stop()
		client.Close() //nolint:errcheck
		return nil, err
	}
	stop()
	client.Off(gateway.EventCertError, certSub)
	log.Step("authenticated")

	s := &session{client: client, cfg: cfg}
	if cfg.Log.Enabled {
		dbPath := cfg.Log.Path
		if dbPath == "" {
			dbPath = eventlog.DefaultDBPath()
		}
		if w, err := eventlog.NewWriter(dbPath); err == nil {
			s.writer = w
			s.recorder = eventlog.Attach(client, w, slog.Default())
		} else {
			slog.Warn("event log disabled", "err", err)
		}
	}
	return s, nil
}

// close releases the connection and the event log.
func (s *session) close() {
	if s.recorder != nil {
		s.recorder.Detach()
	}
	if s.writer != nil {
		s.writer.Close() //nolint:errcheck
	}
	s.client.Close() //nolint:errcheck
}

func clientID(cfg config.Config) string {
	if cfg.Client.ID != "" {
		return cfg.Client.ID
	}
	return "talon-cli"
}

func credentials(cfg config.Config) gateway.Credentials {
	if cfg.Gateway.AuthMode == "password" {
		return gateway.Credentials{Mode: gateway.AuthPassword, Password: cfg.Gateway.Password}
	}
	return gateway.Credentials{Mode: gateway.AuthToken, Token: cfg.Gateway.Token}
}

// placeholderSessionKey mints a local key for a brand-new conversation; the
// gateway's authoritative key arrives via the session-key-changed signal.
func placeholderSessionKey() string {
	return "local:" + uuid.NewString()
}
