// Package main implements talon-view, a live transcript viewer for one
// gateway session. With --pin it shows an isolated subagent transcript.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"talon/internal/version"
	"talon/pkg/config"
	"talon/pkg/gateway"
	"talon/pkg/stream"
)

func main() {
	pin := flag.String("pin", "", "session key to view in isolation")
	flag.Parse()

	if err := run(*pin); err != nil {
		fmt.Fprintf(os.Stderr, "talon-view: %v\n", err)
		os.Exit(1)
	}
}

func run(pin string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := gateway.NewClient(gateway.Config{
		URL: cfg.Gateway.URL,
		Identity: gateway.Identity{
			ID:         "talon-view",
			Version:    version.String(),
			Mode:       "ui",
			InstanceID: uuid.NewString(),
		},
		Credentials: credentials(cfg),
		Logger:      logger,
	})
	defer client.Close()

	if pin != "" {
		client.SetPin(pin)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = client.Connect(ctx)
	cancel()
	if err != nil {
		return err
	}

	p := tea.NewProgram(newModel(pin), tea.WithAltScreen())
	forward(client, p)

	// The gateway URL and credentials were captured at dial time; a config
	// edit during the session only yields a restart notice.
	watcher, err := config.Watch(path, func(config.Config) {
		p.Send(configMsg{})
	}, logger)
	if err != nil {
		logger.Warn("config watch unavailable", "err", err)
	} else {
		defer watcher.Close() //nolint:errcheck
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}

// forward bridges bus signals into bubbletea messages.
func forward(client *gateway.Client, p *tea.Program) {
	client.On(stream.SignalStart, func(v any) {
		if s, ok := v.(stream.Start); ok {
			p.Send(startMsg(s))
		}
	})
	client.On(stream.SignalChunk, func(v any) {
		if c, ok := v.(stream.Chunk); ok {
			p.Send(chunkMsg(c))
		}
	})
	client.On(stream.SignalReplace, func(v any) {
		if r, ok := v.(stream.Replace); ok {
			p.Send(replaceMsg(r))
		}
	})
	client.On(stream.SignalEnd, func(v any) {
		if e, ok := v.(stream.End); ok {
			p.Send(endMsg(e))
		}
	})
	client.On(stream.SignalTool, func(v any) {
		if t, ok := v.(stream.Tool); ok {
			p.Send(toolMsg(t))
		}
	})
	client.On(stream.SignalSubagent, func(v any) {
		if d, ok := v.(stream.SubagentDetected); ok {
			p.Send(subagentMsg(d))
		}
	})
	client.On(gateway.EventDisconnected, func(any) {
		p.Send(connMsg{connected: false})
	})
	client.On(gateway.EventConnected, func(any) {
		p.Send(connMsg{connected: true})
	})
}

func credentials(cfg config.Config) gateway.Credentials {
	if cfg.Gateway.AuthMode == "password" {
		return gateway.Credentials{Mode: gateway.AuthPassword, Password: cfg.Gateway.Password}
	}
	return gateway.Credentials{Mode: gateway.AuthToken, Token: cfg.Gateway.Token}
}
