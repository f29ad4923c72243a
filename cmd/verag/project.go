package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect projects",
		Long:  "Projects are created by the surrounding platform; these commands only read them.",
	}
	cmd.AddCommand(newProjectDocsCmd(c))
	return cmd
}

func newProjectDocsCmd(c *cli) *cobra.Command {
	var limit, offset int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "documents [project-id]",
		Short: "List a project's documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.docs.ListByProject(cmd.Context(), "", args[0], limit, offset)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, docs)
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents.")
				return nil
			}
			for _, d := range docs {
				status := "pending"
				if d.ExtractedAt != nil {
					status = "indexed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %4d chunks  %s\n", d.ID, status, d.ChunkCount, d.Name)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of documents")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of documents to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
