package cmd

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/martinemde/agentwire/agentcore"
	"github.com/martinemde/agentwire/modelkit"
	"github.com/martinemde/agentwire/transcript"
	transcriptsqlite "github.com/martinemde/agentwire/transcript/sqlite"
	"github.com/martinemde/agentwire/wire"
)

func NewServeCmd() *cobra.Command {
	var transportFlag string
	var listenFlag string
	var transcriptFlag string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve agent sessions over stdio or websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(globalConfigFile)
			if err != nil {
				return err
			}
			if transportFlag != "" {
				cfg.Transport = transportFlag
			}
			if listenFlag != "" {
				cfg.Listen = listenFlag
			}
			if transcriptFlag != "" {
				cfg.TranscriptDB = transcriptFlag
			}

			client := modelkit.NewClientFromEnv()
			defer client.Close()

			recorder, err := openRecorder(cfg.TranscriptDB)
			if err != nil {
				return err
			}
			defer recorder.Close()

			engineConfig := agentcore.DefaultConfig()
			if cfg.MaxSteps > 0 {
				engineConfig.MaxSteps = cfg.MaxSteps
			}

			factory := func(t wire.Transport) (*wire.Server, error) {
				tools := agentcore.NewToolset()
				return wire.NewServer(t, client, cfg.Agent, tools, &engineConfig, wire.WithRecorder(recorder)), nil
			}

			switch cfg.Transport {
			case "stdio":
				transport := wire.NewStdioTransport(os.Stdin, os.Stdout)
				srv, err := factory(transport)
				if err != nil {
					return err
				}
				slog.Info("serving session over stdio", "session", srv.SessionID())
				return srv.Run(ctx)
			case "websocket":
				mux := http.NewServeMux()
				mux.HandleFunc("/session", wire.WebSocketHandler(factory))
				httpSrv := &http.Server{
					Addr:              cfg.Listen,
					Handler:           mux,
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					<-ctx.Done()
					httpSrv.Close()
				}()
				slog.Info("serving sessions over websocket", "listen", cfg.Listen)
				if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
					return err
				}
				return nil
			default:
				return &unknownTransportError{name: cfg.Transport}
			}
		},
	}

	c.Flags().StringVar(&transportFlag, "transport", "", "transport: stdio|websocket (overrides config)")
	c.Flags().StringVar(&listenFlag, "listen", "", "websocket listen address (overrides config)")
	c.Flags().StringVar(&transcriptFlag, "transcript", "", "path to a sqlite transcript database (overrides config)")

	return c
}

func openRecorder(path string) (transcript.Recorder, error) {
	if path == "" {
		return transcript.Nop{}, nil
	}
	return transcriptsqlite.New(path)
}

type unknownTransportError struct{ name string }

func (e *unknownTransportError) Error() string {
	return "unknown transport: " + e.name
}
