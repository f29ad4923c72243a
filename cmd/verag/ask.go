package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verag/internal/core/domain"
)

func newAskCmd(c *cli) *cobra.Command {
	var (
		project string
		topK    int
		phase   string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from a project's documents",
		Long: `Embeds the question, retrieves the project's closest chunks and asks the
language model to answer from them. Sources are listed in retrieval order.`,
		Example: `  verag ask --project $P "What is the design flow of pump P-101?"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			answer, err := a.answers.Ask(cmd.Context(), domain.AskRequest{
				ProjectID: project,
				Question:  args[0],
				TopK:      topK,
				Phase:     phase,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, answer)
			}
			printAnswer(cmd, answer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project ID")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (0: server default)")
	cmd.Flags().StringVar(&phase, "phase", "", "value-engineering job plan phase, e.g. function-analysis")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	fmt.Fprintln(cmd.OutOrStdout(), answer.Answer)
	if len(answer.Citations) == 0 {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Sources:")
	for _, c := range answer.Citations {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s (chunk %d, score %.3f)\n", c.Source, c.DocumentName, c.Ordinal, c.Score)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
