// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-engine/internal/history"
	"github.com/pdiddy/article-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export past generation runs",
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	hs, err := openHistory()
	if err != nil {
		return err
	}
	defer hs.Close()

	entries, err := hs.List(cmd.Context(), listOptsFromFlags(cmd))
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if entries == nil {
			entries = []history.Entry{}
		}
		return writeJSON(cmd.OutOrStdout(), entries)
	}
	printEntries(cmd.OutOrStdout(), entries)
	return nil
}

func printEntries(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-16s  %-20s  %-36s  %5s  %6s  %s\n",
		"ID", "Created", "State", "Topic", "Score", "Words", "Rounds")
	fmt.Fprintln(w, strings.Repeat("-", 135))
	for _, e := range entries {
		fmt.Fprintf(w, "%-36s  %-16s  %-20s  %-36s  %5.2f  %6d  %d\n",
			e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.State,
			clip(e.Topic, 36), e.Score, e.WordCount, e.Rounds)
	}
	fmt.Fprintf(w, "\n%d run(s)\n", len(entries))
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the article of a recorded run as Markdown or HTML",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	hs, err := openHistory()
	if err != nil {
		return err
	}
	defer hs.Close()

	e, err := hs.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := history.WriteArticleFile(out, e); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Article written to %s\n", out)
		return nil
	}
	format, _ := cmd.Flags().GetString("format")
	return history.WriteArticle(cmd.OutOrStdout(), format, e)
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded runs to YAML or JSON",
	Long: `Export writes recorded runs, including article content and research
excerpts, to stdout or --out. Supports the same filters as list.`,
	RunE: runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	if out != "" && !cmd.Flags().Changed("format") {
		format = history.FormatForPath(out)
	}

	hs, err := openHistory()
	if err != nil {
		return err
	}
	defer hs.Close()

	entries, err := hs.List(cmd.Context(), listOptsFromFlags(cmd))
	if err != nil {
		return err
	}

	if out == "" {
		return history.Export(cmd.OutOrStdout(), format, entries)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := history.Export(f, format, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d run(s) to %s\n", len(entries), out)
	return nil
}

// --- stats subcommand ---

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise recorded runs",
	RunE:  runHistoryStats,
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	hs, err := openHistory()
	if err != nil {
		return err
	}
	defer hs.Close()

	st, err := hs.Stats(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), st)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Runs:           %d (%d succeeded, %d failed)\n", st.Total, st.Succeeded, st.Failed)
	fmt.Fprintf(w, "Average score:  %.2f\n", st.AverageScore)
	if !st.Latest.IsZero() {
		fmt.Fprintf(w, "Latest run:     %s\n", st.Latest.Local().Format("2006-01-02 15:04"))
	}
	for _, c := range st.TopCategories {
		fmt.Fprintf(w, "  %-30s %d\n", c.Category, c.Count)
	}
	return nil
}

func listOptsFromFlags(cmd *cobra.Command) history.ListOptions {
	limit, _ := cmd.Flags().GetInt("limit")
	state, _ := cmd.Flags().GetString("state")
	topic, _ := cmd.Flags().GetString("topic")
	category, _ := cmd.Flags().GetString("category")
	return history.ListOptions{
		Limit:    limit,
		State:    types.State(strings.ToUpper(state)),
		Topic:    topic,
		Category: category,
	}
}

func addListFlags(cmd *cobra.Command, limit int) {
	cmd.Flags().Int("limit", limit, "maximum runs (0 = all)")
	cmd.Flags().String("state", "", "filter by final state, e.g. ACCEPTED or FAILED")
	cmd.Flags().String("topic", "", "filter by topic substring")
	cmd.Flags().String("category", "", "filter by category")
}

func init() {
	addListFlags(historyListCmd, 20)
	historyListCmd.Flags().Bool("json", false, "output runs as JSON")

	historyShowCmd.Flags().String("format", history.FormatMarkdown, "article format: markdown or html")
	historyShowCmd.Flags().String("out", "", "write the article to this file (.md or .html)")

	addListFlags(historyExportCmd, 0)
	historyExportCmd.Flags().String("format", history.FormatYAML, "export format: yaml or json")
	historyExportCmd.Flags().String("out", "", "write the export to this file instead of stdout")

	historyStatsCmd.Flags().Bool("json", false, "output statistics as JSON")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyStatsCmd)

	rootCmd.AddCommand(historyCmd)
}
