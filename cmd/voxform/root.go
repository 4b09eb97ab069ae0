package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/voxform/voxform/internal/dotenv"
	voxform "github.com/voxform/voxform/sdk"
)

var (
	flagEnvFile     string
	flagConfig      string
	flagMode        string
	flagModel       string
	flagChatModel   string
	flagVoice       string
	flagArchiveDSN  string
	flagMetricsAddr string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "voxform",
	Short: "Dictate or type; the model fills in the form",
	Long: `VoxForm runs structured dictation sessions against the Gemini API.

As you speak or type, the model extracts named fields (patient intake or
sales-visit details) into a record shown beside the conversation.

The API key is read from GEMINI_API_KEY (or GOOGLE_API_KEY).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := dotenv.LoadFile(flagEnvFile); err != nil {
			return err
		}
		if flagVerbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}
		return nil
	},
}

func execute() error {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", "", "session mode: intake or sales")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "live model identifier")
	rootCmd.PersistentFlags().StringVar(&flagChatModel, "chat-model", "", "turn-based chat model identifier")
	rootCmd.PersistentFlags().StringVar(&flagVoice, "voice", "", "prebuilt synthesis voice for voice sessions")
	rootCmd.PersistentFlags().StringVar(&flagArchiveDSN, "archive-dsn", "", "Postgres DSN for archiving encounters")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9090)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(voiceCmd)
	rootCmd.AddCommand(listCmd)
	return rootCmd.Execute()
}

// resolveSettings merges the config file and flags; flags win.
type settings struct {
	mode       voxform.Mode
	archiveDSN string
	options    []voxform.ClientOption
	metrics    *voxform.Metrics
}

func resolveSettings() (settings, error) {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return settings{}, err
	}

	pick := func(flag, file string) string {
		if flag != "" {
			return flag
		}
		return file
	}

	modeName := pick(flagMode, cfg.Mode)
	if modeName == "" {
		modeName = string(voxform.ModeIntake)
	}
	mode, err := voxform.ParseMode(modeName)
	if err != nil {
		return settings{}, err
	}

	var opts []voxform.ClientOption
	if model := pick(flagModel, cfg.Model); model != "" {
		opts = append(opts, voxform.WithModel(model))
	}
	if chatModel := pick(flagChatModel, cfg.ChatModel); chatModel != "" {
		opts = append(opts, voxform.WithChatModel(chatModel))
	}
	if voice := pick(flagVoice, cfg.Voice); voice != "" {
		opts = append(opts, voxform.WithVoice(voice))
	}

	s := settings{
		mode:       mode,
		archiveDSN: pick(flagArchiveDSN, cfg.ArchiveDSN),
		options:    opts,
	}

	if flagMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		s.metrics = voxform.NewMetrics(reg)
		s.options = append(s.options, voxform.WithMetrics(s.metrics))
		go serveMetrics(flagMetricsAddr, reg)
	}
	return s, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}
}
