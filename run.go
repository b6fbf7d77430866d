package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crew_research_assistant/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run research, writing and review once and save the final report",
	Long: `Run executes the three stages in order for one topic and writes the
reviewed report to --out (research_report.md by default). The API key is taken
from --api-key, then RESEARCH_ASSISTANT_API_KEY, then the provider's usual
environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		apiKey, _ := cmd.Flags().GetString("api-key")
		out, _ := cmd.Flags().GetString("out")
		if topic == "" {
			topic = cfg.DefaultTopic
		}
		if apiKey == "" {
			apiKey = envAPIKey(cfg.LLM.Provider)
		}

		log := newLogger(cfg.Verbose)
		ctrl, err := buildController(cfg, log)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		st := pipeline.NewState(topic)
		if err := ctrl.Dispatch(ctx, st, pipeline.Start{APIKey: apiKey, Topic: topic}); err != nil {
			return err
		}
		return writeReport(cmd.OutOrStdout(), st, out)
	},
}

func init() {
	runCmd.Flags().String("topic", "", "research topic (default: default_topic from config)")
	runCmd.Flags().String("api-key", "", "model API key")
	runCmd.Flags().String("out", "research_report.md", `output file for the reviewed report, "-" for stdout`)
	rootCmd.AddCommand(runCmd)
}

func envAPIKey(provider string) string {
	if k := os.Getenv("RESEARCH_ASSISTANT_API_KEY"); k != "" {
		return k
	}
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "deepseek":
		if k := os.Getenv("DEEPSEEK_API_KEY"); k != "" {
			return k
		}
	case "mock":
		return "mock"
	}
	return os.Getenv("OPENAI_API_KEY")
}

// writeReport stores the reviewed report byte for byte.
func writeReport(w io.Writer, st *pipeline.State, path string) error {
	if path == "-" {
		_, err := io.WriteString(w, st.ReviewOutput)
		return err
	}
	if err := os.WriteFile(path, []byte(st.ReviewOutput), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(w, "%s\n", path)
	return nil
}
