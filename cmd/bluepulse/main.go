// Command bluepulse is a terminal for BLE UART-style peripherals with
// on-demand LLM analysis of received data.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bluepulse/internal/adapter/ble/backend"
	"bluepulse/internal/adapter/llm"
	"bluepulse/internal/adapter/tui/terminal"
	"bluepulse/internal/adapter/tui/theme"
	"bluepulse/internal/adapter/tui/uxerror"
	"bluepulse/internal/domain"
	"bluepulse/internal/infra/config"
	"bluepulse/internal/infra/logger"
	"bluepulse/internal/infra/tracer"
	"bluepulse/internal/usecase/analysis"
	"bluepulse/internal/usecase/connection"
	"bluepulse/internal/usecase/eventbus"
	"bluepulse/internal/usecase/messagelog"
)

// rootFlags are the flags shared by every command.
type rootFlags struct {
	ConfigPath string
	Backend    string
	Device     string
	Provider   string
	Model      string
	APIKey     string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fe := uxerror.Humanize(err)
		fmt.Fprintf(os.Stderr, "error: %v\n\n%s\n", err, fe.Render())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "bluepulse",
		Short:         "BLE UART terminal with data analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTerminal(cmd.Context(), flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", config.DefaultPath(), "config file path")
	pf.StringVar(&flags.Backend, "backend", "", "BLE backend: gatt, goble or mock")
	pf.StringVar(&flags.Device, "device", "", "connect to this address or name without the picker")
	pf.StringVar(&flags.Provider, "provider", "", "analysis provider name (gemini, openai or a configured name)")
	pf.StringVar(&flags.Model, "model", "", "analysis model")
	pf.StringVar(&flags.APIKey, "key", "", "analysis API key")

	cmd.AddCommand(
		newScanCommand(flags),
		newEncryptSecretCommand(),
		newVersionCommand(),
	)
	return cmd
}

// loadConfig reads the config file and layers the command-line flags on top.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	applyFlags(cfg, flags)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	return cfg, nil
}

// applyFlags overrides cfg with any flags that were set. An unknown
// --provider name is added as a provider of that type.
func applyFlags(cfg *config.Config, flags *rootFlags) {
	if flags.Backend != "" {
		cfg.BLE.Backend = flags.Backend
	}
	if flags.Device != "" {
		cfg.BLE.Device = flags.Device
	}
	if flags.Provider != "" {
		if cfg.Provider(flags.Provider) == nil {
			pc := config.ProviderConfig{Name: flags.Provider, Type: flags.Provider}
			if pc.Type == "gemini" {
				pc.Model = config.DefaultModel
			}
			cfg.LLM.Providers = append(cfg.LLM.Providers, pc)
		}
		cfg.LLM.DefaultProvider = flags.Provider
		cfg.Analysis.Provider = flags.Provider
	}
	pc := cfg.AnalysisProvider()
	if pc == nil {
		return
	}
	if flags.Model != "" {
		pc.Model = flags.Model
	}
	if flags.APIKey != "" {
		pc.APIKey = flags.APIKey
	}
}

// setup builds the logger and tracer shared by all commands.
func setup(ctx context.Context, cfg *config.Config) (*slog.Logger, func(), error) {
	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}
	return log, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
		_ = closeLog()
	}, nil
}

func runTerminal(ctx context.Context, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, cleanup, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.UI.ASCIISymbols {
		theme.UseSymbols(true)
	}

	bus := eventbus.New(log)
	defer bus.Close()
	unsubscribe := bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		log.Debug("event", "type", string(e.Type), "payload", string(e.Payload))
	})
	defer unsubscribe()
	entries := messagelog.New(messagelog.WithBus(bus))

	// The picker belongs to the UI, which is built after the transport.
	var prog *terminal.Program
	picker := backend.NewLazy(func() domain.Chooser {
		if prog == nil {
			return nil
		}
		return prog.Choose
	})

	var bt domain.Bluetooth
	transport, err := backend.New(cfg.BLE, backend.Chooser(cfg.BLE.Device, picker.Choose), log)
	if err != nil {
		log.Warn("bluetooth unavailable", "backend", cfg.BLE.Backend, "error", err)
	} else {
		bt = transport
		defer func() {
			if err := transport.Close(); err != nil {
				log.Warn("close bluetooth transport", "error", err)
			}
		}()
	}

	mgr := connection.New(connection.Config{
		Bluetooth:        bt,
		Log:              entries,
		Bus:              bus,
		Logger:           log.With("component", "connection"),
		OptionalServices: cfg.BLE.OptionalServices,
	})
	defer mgr.Disconnect()

	analyzer, model, err := buildAnalyzer(cfg, entries, bus, log)
	if err != nil {
		return err
	}

	prog = terminal.NewProgram(terminal.Deps{
		Conn:       mgr,
		Analyzer:   analyzer,
		Log:        entries,
		Logger:     log.With("component", "tui"),
		Backend:    cfg.BLE.Backend,
		Model:      model,
		TimeFormat: cfg.UI.TimeFormat,
	}, bus, terminal.Options{AltScreen: cfg.UI.AltScreen, Mouse: true})

	log.Info("starting terminal", "backend", cfg.BLE.Backend, "analysis", analyzer != nil)
	if err := prog.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run terminal: %w", err)
	}
	return nil
}

// buildAnalyzer returns nil when analysis is disabled. A missing API key is
// not an error: the analyzer reports it to the user on request.
func buildAnalyzer(cfg *config.Config, entries *messagelog.Log, bus domain.EventBus, log *slog.Logger) (terminal.Analyzer, string, error) {
	if !cfg.Analysis.Enabled {
		return nil, "", nil
	}
	sum, err := llm.NewSummarizer(cfg, log.With("component", "llm"))
	if err != nil {
		return nil, "", fmt.Errorf("build summarizer: %w", err)
	}
	var model string
	if pc := cfg.AnalysisProvider(); pc != nil {
		model = pc.Model
	}
	return analysis.New(analysis.Config{
		Summarizer:     sum,
		Log:            entries,
		Bus:            bus,
		Logger:         log.With("component", "analysis"),
		Timeout:        cfg.Analysis.Timeout,
		RequestsPerMin: cfg.Analysis.RequestsPerMin,
		BurstSize:      cfg.Analysis.BurstSize,
	}), model, nil
}
