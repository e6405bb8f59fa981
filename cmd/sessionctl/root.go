package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sonirico/libsession"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

type connectOptions struct {
	session string
	token   string
	tutor   bool
}

// One manager per purpose for the whole process.
var (
	chatOnce, tutorOnce       sync.Once
	chatManager, tutorManager *libsession.Manager
)

func chatClient(cfg libsession.Config, tokens libsession.TokenProvider, log zerolog.Logger) *libsession.Manager {
	chatOnce.Do(func() {
		chatManager = libsession.NewChatManager(cfg, tokens,
			libsession.WithLogger(libsession.NewZerologLogger(log)))
	})
	return chatManager
}

func tutorClient(cfg libsession.Config, tokens libsession.TokenProvider, log zerolog.Logger) *libsession.Manager {
	tutorOnce.Do(func() {
		tutorManager = libsession.NewTutorManager(cfg, tokens,
			libsession.WithLogger(libsession.NewZerologLogger(log)))
	})
	return tutorManager
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Realtime session client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (.toml, .yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newConnectCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))

	return cmd
}

func loadConfig(opts *rootOptions) (libsession.Config, error) {
	if opts.configPath == "" {
		return libsession.LoadConfigFromEnv()
	}
	return libsession.LoadConfigFile(opts.configPath)
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "sessionctl").Logger()
}

func newConfigCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg libsession.Config) {
	fmt.Fprintf(w, "base_url               = %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "path                   = %s\n", cfg.Path)
	fmt.Fprintf(w, "max_reconnect_attempts = %d\n", cfg.MaxReconnectAttempts)
	fmt.Fprintf(w, "reconnect_delay        = %s\n", cfg.ReconnectDelay)
	fmt.Fprintf(w, "reconnect_multiplier   = %g\n", cfg.ReconnectMultiplier)
	fmt.Fprintf(w, "max_reconnect_delay    = %s\n", cfg.MaxReconnectDelay)
	fmt.Fprintf(w, "connect_timeout        = %s\n", cfg.ConnectTimeout)
	fmt.Fprintf(w, "ping_interval          = %s\n", cfg.PingInterval)
	fmt.Fprintf(w, "auth_mode              = %s\n", cfg.AuthMode)
}

func newConnectCommand(root *rootOptions) *cobra.Command {
	opts := &connectOptions{}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Join a session and relay stdin lines as messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if opts.token == "" {
				opts.token = os.Getenv("REALTIME_TOKEN")
			}

			log := newLogger(root.verbose)
			tokens := libsession.StaticToken(opts.token)

			var client *libsession.Manager
			if opts.tutor {
				client = tutorClient(cfg, tokens, log)
			} else {
				client = chatClient(cfg, tokens, log)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, client, libsession.ParseSessionKey(opts.session), cmd.InOrStdin(), log)
		},
	}

	cmd.Flags().StringVarP(&opts.session, "session", "s", "", "session or group id to join")
	cmd.Flags().StringVar(&opts.token, "token", "", "bearer token (default $REALTIME_TOKEN)")
	cmd.Flags().BoolVar(&opts.tutor, "tutor", false, "use the AI tutor protocol")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func run(ctx context.Context, client *libsession.Manager, key libsession.SessionKey, in io.Reader, log zerolog.Logger) error {
	statusSub := client.OnStatusChange(func(s libsession.Status) {
		log.Info().Str("status", s.String()).Msg("status")
	})
	defer client.OffStatusChange(statusSub)

	subs := subscribe(client, log)
	defer func() {
		for _, sub := range subs {
			client.Off(sub)
		}
	}()

	if err := client.Connect(ctx, key); err != nil {
		log.Warn().Err(err).Msg("initial connect failed")
	}
	defer client.Disconnect()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			handleLine(client, strings.TrimSpace(line), log)
		}
	}
}

func handleLine(client *libsession.Manager, line string, log zerolog.Logger) {
	switch {
	case line == "":
		return
	case line == "/typing on":
		client.SendTyping(true)
	case line == "/typing off":
		client.SendTyping(false)
	case strings.HasPrefix(line, "/voice "):
		if !client.SendVoiceMessage(strings.TrimPrefix(line, "/voice ")) {
			log.Warn().Msg("voice message not sent")
		}
	default:
		if !client.SendMessage(line) {
			log.Warn().Str("status", client.Status().String()).Msg("message not sent")
		}
	}
}

func subscribe(client *libsession.Manager, log zerolog.Logger) []*libsession.Subscription {
	return []*libsession.Subscription{
		client.On(libsession.KindNewMessage, libsession.Handle(func(e libsession.ChatMessageEvent) {
			log.Info().Str("from", string(e.UserID)).Str("content", e.Content).Msg("message")
		})),
		client.On(libsession.KindMemberJoined, libsession.Handle(func(e libsession.MemberEvent) {
			log.Info().Str("user", string(e.UserID)).Msg("member joined")
		})),
		client.On(libsession.KindMemberLeft, libsession.Handle(func(e libsession.MemberEvent) {
			log.Info().Str("user", string(e.UserID)).Msg("member left")
		})),
		client.On(libsession.KindTypingStarted, libsession.Handle(func(e libsession.TypingEvent) {
			log.Debug().Str("user", string(e.UserID)).Msg("typing")
		})),
		client.On(libsession.KindTutorMessageComplete, libsession.Handle(func(e libsession.TutorCompleteEvent) {
			log.Info().Str("id", string(e.ID)).Int("fragments", e.Fragments).Str("content", e.Content).Msg("tutor")
		})),
		client.On(libsession.KindTutorMessageChunk, libsession.Handle(func(e libsession.TutorChunkEvent) {
			log.Debug().Str("id", string(e.ID)).Int("index", e.Index).Str("content", e.Content).Msg("chunk")
		})),
		client.On(libsession.KindError, libsession.Handle(func(e libsession.ErrorEvent) {
			log.Warn().Err(e.Err).Msg("error")
		})),
		client.On(libsession.KindReconnectFailed, libsession.Handle(func(e libsession.ReconnectFailedEvent) {
			log.Error().Int("attempts", e.Attempts).Msg(e.Message)
		})),
	}
}
