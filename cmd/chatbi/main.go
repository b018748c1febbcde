package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chatbi/internal/api"
	"chatbi/internal/config"
	"chatbi/internal/dataset"
	"chatbi/internal/gateway"
	"chatbi/internal/logging"
	"chatbi/internal/report"
	"chatbi/internal/session"
	"chatbi/internal/table"
)

var (
	configPath  string
	datasetPath string
	port        int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chatbi",
	Short: "chatbi - conversational analysis over a tabular dataset",
	Long: `chatbi answers questions about a CSV/TSV dataset in natural language.

Each question is routed by intent, turned into a small sandboxed program
against the dataset, executed, and narrated back. Open questions fan out
into multiple analysis angles with a synthesized final insight.`,
}

// serveCmd starts the HTTP backend
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP backend for the chat frontend",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cfg, err := buildEngine()
		if err != nil {
			return err
		}
		defer logging.CloseAll()
		fmt.Printf("%s %s listening on :%d (dataset: %s)\n",
			cfg.Name, cfg.Version, cfg.Server.Port, engine.Dataset().Name)
		return api.ListenAndServe(engine, cfg)
	},
}

// askCmd answers one question on the command line
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine()
		if err != nil {
			return err
		}
		defer logging.CloseAll()

		question := strings.Join(args, " ")
		turn, err := engine.HandleTurn(context.Background(), session.NewSession(), question)
		if err != nil {
			return err
		}
		printTurn(turn)
		return nil
	},
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.DefaultConfig()
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	},
}

func buildEngine() (*session.Engine, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if datasetPath != "" {
		cfg.Dataset.Path = datasetPath
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if err := logging.Initialize(logging.Options{
		Dir:        cfg.Logging.Dir,
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, nil, err
	}
	logging.Boot("starting %s %s", cfg.Name, cfg.Version)

	ds, err := dataset.Load(cfg.Dataset.Path, cfg.Dataset.NumericTokens)
	if err != nil {
		return nil, nil, err
	}
	logging.Dataset("loaded %s: %d rows, %d columns", ds.Name, ds.Table.NumRows(), ds.Table.NumCols())

	gw := gateway.NewGeminiClient(gateway.GeminiConfig{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		RouterModel:  cfg.LLM.RouterModel,
		PlannerModel: cfg.LLM.PlannerModel,
		Timeout:      cfg.GetLLMTimeout(),
		RetryBase:    cfg.GetRetryBase(),
		MaxAttempts:  cfg.LLM.MaxAttempts,
	})

	engine, err := session.NewEngine(cfg, gw, ds)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

func printTurn(t report.Turn) {
	if t.Kind == report.KindText || t.Report == nil {
		fmt.Println(t.Text)
		return
	}
	r := t.Report
	if r.Mode == report.ModeSimple {
		if r.Summary != nil {
			fmt.Printf("Intent: %s\nLogic: %s\n\n", r.Summary.Intent, r.Summary.Logic)
		}
		for _, nt := range r.Tables {
			fmt.Printf("== %s ==\n%s\n", nt.Name, table.Render(table.FormatForDisplay(nt.Table), 20))
		}
		return
	}
	fmt.Printf("%s\n\n", r.Intent)
	for _, a := range r.Angles {
		fmt.Printf("== %s ==\n%s\n%s\n\n", a.Title, table.Render(table.FormatForDisplay(a.Table), 20), a.Explanation)
	}
	fmt.Printf("--- Insight ---\n%s\n", r.Insight)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "chatbi.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&datasetPath, "dataset", "d", "", "dataset path (overrides config)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
