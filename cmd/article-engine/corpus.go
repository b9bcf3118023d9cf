// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-engine/internal/corpus"
	"github.com/pdiddy/article-engine/internal/similarity"
	"github.com/pdiddy/article-engine/pkg/types"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the exemplar corpus used for style conditioning",
	Long: `Corpus manages the house-style exemplar articles stored in a local SQLite
database. The writer and rewriter are conditioned on the exemplars most
similar to each request.`,
}

// --- ingest subcommand ---

var corpusIngestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Add or replace exemplars from .md, .txt, or .yaml files",
	Long: `Ingest reads exemplars from files and directories (one level deep).
Markdown and text files hold one exemplar named after the file; YAML files
hold one exemplar or a list. Re-ingesting an ID replaces the stored exemplar.

Without paths, the configured exemplars directory is scanned when it exists.
--seed adds the built-in house-style exemplars.`,
	RunE: runCorpusIngest,
}

func runCorpusIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	seed, _ := cmd.Flags().GetBool("seed")

	paths := args
	if len(paths) == 0 {
		if _, err := os.Stat(appConfig.Corpus.ExemplarsDir); err == nil {
			paths = []string{appConfig.Corpus.ExemplarsDir}
		}
	}
	if len(paths) == 0 && !seed {
		return fmt.Errorf("no exemplar paths given and %s does not exist; pass paths or --seed", appConfig.Corpus.ExemplarsDir)
	}

	docs, err := corpus.LoadPaths(paths)
	if err != nil {
		return err
	}
	if seed {
		seedDocs, err := corpus.SeedDocuments()
		if err != nil {
			return err
		}
		docs = append(docs, seedDocs...)
	}

	mgr, store, err := openCorpus(ctx, appConfig.Corpus, false)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := mgr.Ingest(ctx, docs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingested %d exemplar(s): %d added, %d replaced, %d rejected\n",
		summary.Total(), summary.Added, summary.Replaced, len(summary.Rejected))
	for _, r := range summary.Rejected {
		fmt.Fprintf(out, "  rejected %q: %s\n", r.ID, r.Reason)
	}
	fmt.Fprintf(out, "Corpus size: %d\n", mgr.Size())
	return nil
}

// --- query subcommand ---

var corpusQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Show the exemplars most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCorpusQuery,
}

func runCorpusQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	k, _ := cmd.Flags().GetInt("k")

	mgr, store, err := openCorpus(ctx, appConfig.Corpus, appConfig.Corpus.SeedWhenEmpty)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := mgr.TopK(ctx, strings.Join(args, " "), k)
	if errors.Is(err, similarity.ErrEmptyCorpus) {
		fmt.Fprintln(cmd.OutOrStdout(), "Corpus is empty.")
		return nil
	}
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-4s  %-10s  %-24s  %s\n", "Rank", "Similarity", "ID", "Title")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for i, r := range results {
		fmt.Fprintf(out, "%-4d  %-10.4f  %-24s  %s\n", i+1, r.Similarity, clip(r.Document.ID, 24), clip(r.Document.Title, 40))
	}
	return nil
}

// --- list subcommand ---

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored exemplars with their style signals",
	RunE:  runCorpusList,
}

func runCorpusList(cmd *cobra.Command, args []string) error {
	mgr, store, err := openCorpus(cmd.Context(), appConfig.Corpus, false)
	if err != nil {
		return err
	}
	defer store.Close()

	docs := mgr.Documents()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), docs)
	}
	printExemplars(cmd.OutOrStdout(), docs)
	return nil
}

func printExemplars(w io.Writer, docs []types.ExemplarDocument) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "Corpus is empty.")
		return
	}
	fmt.Fprintf(w, "%-24s  %-36s  %-22s  %6s  %9s\n", "ID", "Title", "Category", "Words", "Formality")
	fmt.Fprintln(w, strings.Repeat("-", 105))
	for _, d := range docs {
		fmt.Fprintf(w, "%-24s  %-36s  %-22s  %6d  %9.1f\n",
			clip(d.ID, 24), clip(d.Title, 36), clip(d.Category, 22), d.Style.WordCount, d.Style.FormalityScore)
	}
	fmt.Fprintf(w, "\n%d exemplar(s)\n", len(docs))
}

// --- remove subcommand ---

var corpusRemoveCmd = &cobra.Command{
	Use:   "remove <id>...",
	Short: "Remove exemplars by ID",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCorpusRemove,
}

func runCorpusRemove(cmd *cobra.Command, args []string) error {
	mgr, store, err := openCorpus(cmd.Context(), appConfig.Corpus, false)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := mgr.Remove(cmd.Context(), args)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d exemplar(s); corpus size %d\n", n, mgr.Size())
	return nil
}

// --- shared helpers ---

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// clip shortens s to n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	corpusIngestCmd.Flags().Bool("seed", false, "also ingest the built-in house-style exemplars")
	corpusQueryCmd.Flags().Int("k", types.DefaultRunConfig().ExemplarCount(), "number of exemplars to return")
	corpusQueryCmd.Flags().Bool("json", false, "output results as JSON")
	corpusListCmd.Flags().Bool("json", false, "output exemplars as JSON")

	corpusCmd.AddCommand(corpusIngestCmd)
	corpusCmd.AddCommand(corpusQueryCmd)
	corpusCmd.AddCommand(corpusListCmd)
	corpusCmd.AddCommand(corpusRemoveCmd)

	rootCmd.AddCommand(corpusCmd)
}
