package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/studyhub/internal/ingest"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "studyhub-ingest",
		Short:         "Sort uploaded study files and regenerate the catalog and quiz",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every sorted file")

	root.AddCommand(newRunCmd(), newSummarizeCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		opts ingest.Options
		seed int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Move pending uploads into category folders and rewrite resources.json and quiz.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed != 0 {
				opts.Rand = rand.New(rand.NewSource(seed))
			}
			opts.Now = time.Now

			report, err := ingest.New(opts).Run()
			if err != nil {
				slog.Error("ingest failed", "error", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d resources (%d total), wrote %d quiz questions (%s)\n",
				len(report.Added), report.Total, report.Questions, report.QuizSource)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UploadsDir, "uploads", "data/resources", "directory holding new uploads")
	cmd.Flags().StringVar(&opts.ResourcesFile, "resources", "data/resources.json", "catalog document to update")
	cmd.Flags().StringVar(&opts.QuizFile, "quiz", "data/quiz.json", "quiz document to regenerate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "shuffle seed for quiz options (0 picks one)")
	return cmd
}

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <file>",
		Short: "Print the summary ingest would use for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := ingest.ExtractText(args[0])
			if err != nil {
				slog.Error("extraction failed", "file", args[0], "error", err)
				return err
			}
			summary := ingest.Summarize(text)
			if summary == "" {
				summary = "(no extractable text)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}
