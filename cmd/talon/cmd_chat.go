package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"talon/pkg/calls"
	"talon/pkg/stream"
)

// chatConfig holds flags for the chat command.
type chatConfig struct {
	sessionKey string
	agent      string
	noStream   bool
}

// newChatCmd creates the "talon chat" subcommand.
func newChatCmd() *cobra.Command {
	var cfg chatConfig

	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send a message and stream the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, cfg, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&cfg.sessionKey, "session", "s", "", "session key (new session when empty)")
	cmd.Flags().StringVarP(&cfg.agent, "agent", "a", "", "agent to route the message to")
	cmd.Flags().BoolVar(&cfg.noStream, "no-stream", false, "suppress incremental output, print the final text only")
	return cmd
}

func runChat(cmd *cobra.Command, cfg chatConfig, text string) error {
	ctx := cmd.Context()
	s, err := dial(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	key := cfg.sessionKey
	if key == "" {
		key = placeholderSessionKey()
	}
	agent := cfg.agent
	if agent == "" {
		agent = s.cfg.Client.DefaultAgent
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	done := make(chan stream.End, 1)

	s.client.On(stream.SignalChunk, func(p any) {
		if ch, ok := p.(stream.Chunk); ok && !cfg.noStream {
			fmt.Fprint(out, ch.Text)
		}
	})
	s.client.On(stream.SignalReplace, func(p any) {
		if r, ok := p.(stream.Replace); ok && !cfg.noStream {
			fmt.Fprintf(out, "\n--- revised ---\n%s", r.Text)
		}
	})
	s.client.On(stream.SignalTool, func(p any) {
		if tl, ok := p.(stream.Tool); ok && tl.Invocation.Phase == "start" {
			fmt.Fprintf(errOut, "[tool] %s\n", tl.Invocation.Name)
		}
	})
	s.client.On(stream.SignalSessionKeyChanged, func(p any) {
		if ch, ok := p.(stream.SessionKeyChanged); ok {
			fmt.Fprintf(errOut, "[session] %s\n", ch.New)
		}
	})
	s.client.On(stream.SignalEnd, func(p any) {
		if e, ok := p.(stream.End); ok {
			select {
			case done <- e:
			default:
			}
		}
	})

	if err := calls.NewChat(s.client).Send(ctx, key, text, calls.SendOptions{Agent: agent}); err != nil {
		return err
	}

	select {
	case end := <-done:
		if cfg.noStream {
			fmt.Fprintln(out, end.Text)
		} else {
			fmt.Fprintln(out)
		}
		if end.Err != "" {
			return fmt.Errorf("run failed: %s", end.Err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
