// Command kiosk is the production entrypoint: a cobra root command with a
// serve subcommand (wiring order grounded on the teacher's cmd/samantha
// main: config, metrics, store, providers, orchestrator, router, graceful
// shutdown) and a migrate subcommand for standalone schema init.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/antoniostano/kiosk/internal/acl"
	"github.com/antoniostano/kiosk/internal/config"
	"github.com/antoniostano/kiosk/internal/correlation"
	"github.com/antoniostano/kiosk/internal/executor"
	"github.com/antoniostano/kiosk/internal/httpapi"
	"github.com/antoniostano/kiosk/internal/kiosk"
	"github.com/antoniostano/kiosk/internal/observability"
	"github.com/antoniostano/kiosk/internal/orchestrator"
	"github.com/antoniostano/kiosk/internal/providers/llm"
	"github.com/antoniostano/kiosk/internal/providers/stt"
	"github.com/antoniostano/kiosk/internal/providers/tts"
	"github.com/antoniostano/kiosk/internal/sessionbuffer"
	"github.com/antoniostano/kiosk/internal/staffauth"
	"github.com/antoniostano/kiosk/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:   "kiosk",
		Short: "LAN-only voice-interaction kiosk server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk HTTP/SSE server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQLite pending-review schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			st, err := store.NewSQLiteStore(cfg.StorePath)
			if err != nil {
				return fmt.Errorf("schema init failed: %w", err)
			}
			return st.Close()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := observability.NewLogger("info")
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("store init failed: %w", err)
	}
	defer st.Close()

	sttProvider, sttCleanup := resolveSTTProvider(cfg, logger)
	if sttCleanup != nil {
		defer sttCleanup()
	}
	llmProvider := resolveLLMProvider(cfg, logger)

	machine := kiosk.New(orchestrator.Config{
		ConsentTimeoutMs:     cfg.ConsentTimeout.Milliseconds(),
		InactivityTimeoutMs:  cfg.InactivityTimeout.Milliseconds(),
		LegacyPersonalWakeup: cfg.LegacyPersonalWakeup,
	}, logger, nowMs)

	// The executor's Sink is the machine itself (it implements kioskcmd.Sink
	// via Send), so construction happens after the bare machine exists and
	// is wired back in with AttachExecutor.
	exec := executor.New(executor.Deps{
		STT:                  sttProvider,
		LLM:                  llmProvider,
		Correlation:          correlation.New(),
		SessionBuffer:        sessionbuffer.NewClamper(sessionbuffer.DefaultMaxTokens),
		Sink:                 machine,
		Metrics:              metrics,
		SessionSummaryWriter: store.SessionSummaryWriter(st),
		LegacyPendingWriter:  store.LegacyPendingWriter(st),
		Logger:               logger,
		NowMs:                nowMs,
	})
	machine.AttachExecutor(exec)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	machine.Run(runCtx)
	machine.StartTicker(runCtx, cfg.TickInterval)

	staff := staffauth.NewManager(cfg.StaffSessionTTL)
	staff.StartJanitor(runCtx, 5*time.Second)

	allow, err := acl.New(cfg.StaffAllowedCIDRs)
	if err != nil {
		return fmt.Errorf("staff allowlist config: %w", err)
	}

	var ttsProvider tts.Provider = tts.MockProvider{}

	api := httpapi.New(cfg, machine, st, staff, allow, ttsProvider, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info().Str("addr", cfg.BindAddr).Msg("kiosk server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func nowMs() int64 { return time.Now().UnixMilli() }

// resolveSTTProvider picks whisper.cpp or the mock transcriber; a close
// func is returned for the whisper model handle, nil otherwise.
func resolveSTTProvider(cfg config.Config, logger zerolog.Logger) (stt.Provider, func()) {
	switch strings.ToLower(strings.TrimSpace(cfg.STTProvider)) {
	case "whisper":
		p, err := stt.NewWhisperCPPProvider(cfg.WhisperModelPath, cfg.WhisperLanguage, cfg.WhisperThreads)
		if err != nil {
			logger.Fatal().Err(err).Msg("whisper.cpp provider init failed")
		}
		logger.Info().Msg("stt provider: whisper.cpp")
		return p, func() { _ = p.Close() }
	default:
		logger.Info().Msg("stt provider: mock")
		return &stt.MockProvider{}, nil
	}
}

func resolveLLMProvider(cfg config.Config, logger zerolog.Logger) llm.Provider {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "anthropic":
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			logger.Fatal().Msg("LLM_PROVIDER=anthropic but ANTHROPIC_API_KEY is not set")
		}
		logger.Info().Msg("llm provider: anthropic")
		return llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.SystemPrompt)
	default:
		logger.Info().Msg("llm provider: mock")
		return &llm.MockProvider{Reply: llm.ChatOutput{Text: "Hello! How can I help?", Expression: "neutral"}}
	}
}
