// Command research-assistant runs a three-agent research crew (researcher,
// writer, reviewer) behind a small web UI or from the terminal.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crew_research_assistant/config"
	"crew_research_assistant/crew"
	"crew_research_assistant/pipeline"
)

// Set by LDFLAGS
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "research-assistant",
	Short: "Research, write and review a report with a crew of AI agents",
	Long: `research-assistant sequences three language-model agents: a researcher
gathers information on a topic, a writer turns it into a structured report, and a
reviewer refines the report. Use "serve" for the web UI or "run" for a one-shot
terminal run that writes research_report.md.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(viper.GetViper(), path)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./research-assistant.yaml or ~/.config/research-assistant/research-assistant.yaml)")
	pf.BoolP("verbose", "v", false, "enable debug logs")
	pf.String("provider", "", "llm provider: openai, deepseek, anthropic or mock")
	pf.String("model", "", "model name")
	pf.String("base-url", "", "override the provider endpoint")

	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("llm.provider", pf.Lookup("provider"))
	_ = viper.BindPFlag("llm.model", pf.Lookup("model"))
	_ = viper.BindPFlag("llm.base_url", pf.Lookup("base-url"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}

func buildController(cfg config.Config, log *slog.Logger) (*pipeline.Controller, error) {
	factory, err := crew.NewClientFactory(crew.LLMSettings{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	inv, err := pipeline.NewCrewInvoker(factory)
	if err != nil {
		return nil, err
	}
	return pipeline.NewController(pipeline.Config{
		Invoker:      inv,
		Logger:       log,
		StageTimeout: cfg.StageTimeout,
	})
}
