package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/soyeahso/gerald/internal/action"
	"github.com/soyeahso/gerald/internal/adapters/convend"
	"github.com/soyeahso/gerald/internal/adapters/lights"
	"github.com/soyeahso/gerald/internal/adapters/timer"
	"github.com/soyeahso/gerald/internal/adapters/weather"
	"github.com/soyeahso/gerald/internal/config"
	"github.com/soyeahso/gerald/internal/interpreter"
	"github.com/soyeahso/gerald/internal/logging"
	"github.com/soyeahso/gerald/internal/server"
	"github.com/soyeahso/gerald/internal/session"
	"github.com/soyeahso/gerald/internal/speech"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			// Rebuild the logger now that the config's logging section is
			// known; the --log-level flag beats the file.
			out, err := openLogOutput(cfg.Logging)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			var logOut io.Writer
			if out != nil {
				defer out.Close()
				logOut = out
			}
			log = logging.New(logOut, resolveLogLevel(cfg.Logging, logLevel))

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			return runServer(&cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override the listen port")
	cmd.Flags().StringVar(&bind, "bind", "", "override the bind mode (loopback, lan, custom)")

	return cmd
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := action.NewDispatcher(log)
	if cfg.Adapters.Lifx != nil {
		dispatcher.Register(lights.New(*cfg.Adapters.Lifx, log))
	}
	dispatcher.Register(convend.New(log))
	dispatcher.Register(timer.New(*cfg.Adapters.Timer, log))
	if cfg.Adapters.Weather != nil {
		dispatcher.Register(weather.New(*cfg.Adapters.Weather, log))
	}

	if err := dispatcher.Initialise(ctx); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}
	go dispatcher.Run(ctx)

	chatConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		chatConfig.BaseURL = cfg.OpenAI.BaseURL
	}
	chatClient := openai.NewClientWithConfig(chatConfig)

	stt := speech.NewTranscriber(cfg.Speech, log)
	tts := speech.NewSynthesizer(cfg.Speech, log)

	sessionCfg := session.Config{
		KeepAliveTTL: cfg.Conversation.KeepAliveTTL,
		WakeWords:    cfg.Conversation.WakeWords,
	}

	srv := server.New(cfg.Server, func(t session.Transport) *session.Handler {
		return session.New(t, dispatcher, stt, tts, func() *interpreter.Interpreter {
			return interpreter.New(chatClient, cfg.OpenAI.Model)
		}, sessionCfg, log)
	}, log)

	return srv.Start(ctx)
}

// resolveLogLevel picks the effective log level: flag, then config file,
// then info.
func resolveLogLevel(cfg config.LoggingConfig, flagLevel string) string {
	if flagLevel != "" {
		return flagLevel
	}
	if cfg.Level != "" {
		return cfg.Level
	}
	return "info"
}

// openLogOutput opens the configured log file for appending. A blank path
// means console output.
func openLogOutput(cfg config.LoggingConfig) (*os.File, error) {
	if cfg.File == "" {
		return nil, nil
	}
	return os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
