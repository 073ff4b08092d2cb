package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/service"
	"docrag/internal/tui"
)

func sessionCMD(opts *globalOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "session FILE...",
		Short: "Load documents into a session and browse answers interactively",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			sess, err := a.session()
			if err != nil {
				return err
			}
			report, err := sess.IngestFiles(ctx, args)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			a.log.Info("session ready", "documents", len(report.Documents), "chunks", report.Chunks)

			if topK <= 0 {
				topK = a.cfg.Session.TopK
			}
			_, err = tea.NewProgram(tui.New(ctx, sess, report.Summary, topK), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "results per query (default from config)")
	return cmd
}

func buildCMD(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "build [DIR]",
		Short: "Build the persistent index from a corpus directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			dir := a.cfg.Corpus.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			res, err := a.corpus(cmd.Context()).Build(cmd.Context(), dir)
			if err != nil {
				return errors.New(service.Message(err))
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents into %d chunks.\n", res.NumDocuments, res.NumChunks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the build result as JSON")
	return cmd
}

type askOutput struct {
	Answer  string         `json:"answer"`
	Sources []sourceOutput `json:"sources"`
}

type sourceOutput struct {
	Source  string  `json:"source"`
	Page    int     `json:"page,omitempty"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

func askCMD(opts *globalOptions) *cobra.Command {
	var (
		topK   int
		scope  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question from the persistent index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			resp, err := a.corpus(cmd.Context()).Query(cmd.Context(), args[0], topK, scope)
			if err != nil {
				return errors.New(service.Message(err))
			}
			out := askOutput{Answer: resp.Answer, Sources: make([]sourceOutput, 0, len(resp.Results))}
			for _, r := range resp.Results {
				out.Sources = append(out.Sources, sourceOutput{Source: r.Source, Page: r.Page, Score: r.Score, Snippet: snippet(r)})
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, out.Answer)
			if len(out.Sources) > 0 {
				fmt.Fprintln(w)
				fmt.Fprintln(w, "Sources:")
				for i, s := range out.Sources {
					fmt.Fprintf(w, "[%d] %s, page %d (%.3f)\n", i+1, s.Source, s.Page, s.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "chunks to retrieve before ranking (default from config)")
	cmd.Flags().StringVar(&scope, "scope", "", "only use chunks from this source file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}

func statusCMD(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what the persistent index contains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			st := a.corpus(cmd.Context()).Status(cmd.Context())
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeStatus(st))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func describeStatus(st domain.Status) string {
	if !st.Indexed {
		return "No index found. Run `docrag build` first."
	}
	return fmt.Sprintf("Indexed: %d documents, %d chunks.", st.NumDocuments, st.NumChunks)
}

func snippet(r domain.Result) string {
	if r.Chunk.Snippet != "" {
		return r.Chunk.Snippet
	}
	return r.Chunk.Text
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
