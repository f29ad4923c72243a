package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/verag/internal/core/domain"
)

type ingestFlags struct {
	project  string
	name     string
	file     string
	document string
	text     string
	force    bool
	async    bool
	asJSON   bool
}

func newIngestCmd(c *cli) *cobra.Command {
	f := &ingestFlags{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract, chunk and embed a document",
		Long: `Indexes one document. Exactly one source is required:

  --file PATH      store the file and ingest it (PDF, HTML, Markdown, text)
  --text TEXT      ingest raw text as a new document ("-" reads stdin)
  --document ID    re-ingest a stored document`,
		Example: `  verag ingest --project $P --file specs/pump-datasheet.pdf
  verag ingest --project $P --name notes.txt --text "P-101 duty point 40 m3/h"
  verag ingest --document $D --force --async`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.document == "" && f.project == "" {
				return errors.New("--project is required with --file or --text")
			}
			if f.async && f.text != "" {
				return errors.New("--async needs a stored document; use --file or --document")
			}

			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := f.request(cmd.Context(), a, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if f.async {
				task, err := a.ingest.Enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				if f.asJSON {
					return printJSON(cmd, task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued task %s for document %s\n", task.ID, task.DocumentID())
				return nil
			}

			result, err := a.ingest.Ingest(cmd.Context(), req)
			if err != nil {
				return err
			}
			if f.asJSON {
				return printJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s (%s): %d chunks in %s\n",
				result.Name, result.DocumentID, result.ChunkCount, result.Took.Round(time.Millisecond))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.project, "project", "p", "", "project ID")
	flags.StringVar(&f.name, "name", "", "document name (defaults to the file name)")
	flags.StringVarP(&f.file, "file", "f", "", "path of a file to ingest")
	flags.StringVarP(&f.document, "document", "d", "", "ID of a stored document")
	flags.StringVar(&f.text, "text", "", "raw text to ingest")
	flags.BoolVar(&f.force, "force", false, "re-extract text even if already extracted")
	flags.BoolVar(&f.async, "async", false, "queue the ingestion for the worker")
	flags.BoolVar(&f.asJSON, "json", false, "output as JSON")

	cmd.MarkFlagsOneRequired("file", "text", "document")
	cmd.MarkFlagsMutuallyExclusive("file", "text", "document")
	return cmd
}

// request turns the flags into an IngestRequest, storing the file first
// when --file is given.
func (f *ingestFlags) request(ctx context.Context, a *app, stdin io.Reader) (domain.IngestRequest, error) {
	switch {
	case f.document != "":
		return domain.IngestRequest{DocumentID: f.document, ForceExtract: f.force}, nil

	case f.file != "":
		doc, err := storeFile(ctx, a, f.project, f.file, f.name)
		if err != nil {
			return domain.IngestRequest{}, err
		}
		return domain.IngestRequest{DocumentID: doc.ID, ForceExtract: f.force}, nil

	default:
		text := f.text
		if text == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return domain.IngestRequest{}, fmt.Errorf("read stdin: %w", err)
			}
			text = string(data)
		}
		name := f.name
		if name == "" {
			name = "text-" + time.Now().UTC().Format("20060102-150405")
		}
		return domain.IngestRequest{ProjectID: f.project, Name: name, Text: text}, nil
	}
}

// storeFile copies a local file into file storage and records its document row.
func storeFile(ctx context.Context, a *app, projectID, path, name string) (*domain.Document, error) {
	if _, err := a.projects.Get(ctx, projectID); err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	mimeType, err := detectMIME(fh, path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(path)
	}

	rel, size, err := a.files.Put(ctx, projectID, name, fh)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:        domain.GenerateID(),
		ProjectID: projectID,
		Name:      name,
		FilePath:  rel,
		MimeType:  mimeType,
		SizeBytes: size,
		CreatedAt: time.Now(),
	}
	if err := a.documents.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// detectMIME sniffs the content type and rewinds the file. Markdown sniffs
// as plain text, so the extension decides for it.
func detectMIME(fh io.ReadSeeker, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "text/markdown", nil
	}
	mt, err := mimetype.DetectReader(fh)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}
