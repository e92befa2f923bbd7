package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragchat/internal/domain"
	"ragchat/internal/errortypes"
	"ragchat/internal/ingest"
	"ragchat/internal/tui"
	"ragchat/internal/ui"
)

func newAddCmd() *cobra.Command {
	var (
		docType string
		records string
	)
	cmd := &cobra.Command{
		Use:   "add [paths...]",
		Short: "Chunk text files or JSON records and add them to the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && records == "" {
				return errortypes.ValidationError(nil, "nothing to add: pass file paths or --records")
			}
			dt, err := domain.ParseDocType(docType)
			if err != nil {
				return errortypes.ValidationError(err, "invalid --type")
			}
			return withApp(func(a *app) error {
				var docs []domain.Document
				if len(args) > 0 {
					fileDocs, err := ingest.LoadFiles(args, dt, a.logger)
					if err != nil {
						return err
					}
					docs = append(docs, fileDocs...)
				}
				if records != "" {
					recDocs, err := readRecords(records)
					if err != nil {
						return err
					}
					docs = append(docs, recDocs...)
				}
				report, err := a.svc.IngestDocuments(docs)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				ui.ShowSuccess(out, fmt.Sprintf("Indexed %d chunks from %d documents", report.Chunks, report.Documents))
				ui.PrintInfo(out, a.svc.Info())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", string(domain.DocTypePDF), "Document type recorded for files (pdf or website)")
	cmd.Flags().StringVarP(&records, "records", "r", "", "JSON or JSONL file of {content, source, type} records (- for stdin)")
	return cmd
}

func readRecords(path string) ([]domain.Document, error) {
	if path == "-" {
		return ingest.LoadRecords(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errortypes.ValidationError(err, "failed to open records file")
	}
	defer f.Close()
	return ingest.LoadRecords(f)
}

func newSearchCmd() *cobra.Command {
	var (
		k       int
		asJSON  bool
		preview int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks most similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				limit := k
				if limit == 0 {
					limit = a.svc.TopK()
				}
				results, err := a.svc.Query(args[0], limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(results)
				}
				if len(results) == 0 {
					ui.ShowWarning(out, "No results. Is the index empty?")
					return nil
				}
				ui.PrintResults(out, results, preview)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of results (defaults to search.top_k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().IntVar(&preview, "preview", 200, "Characters of content to show per result")
	return cmd
}

func newInfoCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Describe the persisted index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				info := a.svc.Info()
				if asJSON {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
				}
				ui.PrintInfo(cmd.OutOrStdout(), info)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print info as JSON")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the index and its metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				out := cmd.OutOrStdout()
				info := a.svc.Info()
				if !yes {
					if !ui.IsInteractive() {
						return errortypes.ValidationError(nil, "refusing to delete without --yes in a non-interactive session")
					}
					ok, err := ui.ConfirmDelete(info.Count)
					if err != nil {
						return err
					}
					if !ok {
						ui.ShowInfo(out, "Aborted.")
						return nil
					}
				}
				if err := a.svc.Reset(); err != nil {
					return err
				}
				ui.ShowSuccess(out, fmt.Sprintf("Deleted index (%d entries)", info.Count))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newAskCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				answer, err := a.svc.Ask(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(answer)
				}
				ui.PrintAnswer(cmd.OutOrStdout(), answer)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")
	return cmd
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat over the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !ui.IsInteractive() {
				return errors.New("chat needs an interactive terminal")
			}
			return withApp(func(a *app) error {
				_, err := tea.NewProgram(tui.New(a.svc), tea.WithAltScreen()).Run()
				return err
			})
		},
	}
}
