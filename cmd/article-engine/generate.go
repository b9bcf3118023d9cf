// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pdiddy/article-engine/internal/history"
	"github.com/pdiddy/article-engine/internal/pipeline"
	"github.com/pdiddy/article-engine/internal/sources"
	"github.com/pdiddy/article-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Research, draft, review, and rewrite one article",
	Long: `Generate runs the full pipeline for one content request. The researcher
builds a brief (optionally from --source-url pages), the writer drafts in
the house style of the closest exemplars, and the reviewer scores each draft.
Drafts below --threshold are rewritten until --max-rounds drafts exist; the
best draft is returned when the budget runs out.

The article is printed to stdout, or written to --out (.md or .html). A run
summary goes to stderr. Every run is recorded in the history database.`,
	Example: `  article-engine generate --topic "AI in radiology" --industry Healthcare \
    --keywords "radiology,machine learning" --length medium --out article.md`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	req := requestFromFlags(cmd)
	rc := runConfigFromFlags(cmd, appConfig.Pipeline)

	client, err := newClient(appConfig.Generation)
	if err != nil {
		return err
	}
	mgr, store, err := openCorpus(ctx, appConfig.Corpus, appConfig.Corpus.SeedWhenEmpty)
	if err != nil {
		return err
	}
	defer store.Close()

	orch := pipeline.New(client, mgr,
		pipeline.WithFetcher(sources.NewHTTPFetcher(appConfig.Sources, logger)),
		pipeline.WithAgentSettings(appConfig.Agents),
		pipeline.WithConcurrency(appConfig.Generation.Concurrency),
		pipeline.WithLogger(logger),
	)

	res, err := orch.Run(ctx, req, rc)
	if err != nil {
		return err
	}

	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		recordRun(cmd, res)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printSummary(cmd.ErrOrStderr(), res)
		if res.Final != nil {
			if err := writeArticle(cmd, res); err != nil {
				return err
			}
		}
	}

	if res.State == types.StateFailed {
		return fmt.Errorf("generation failed: %s", res.Failure)
	}
	return nil
}

func recordRun(cmd *cobra.Command, res types.PipelineResult) {
	hs, err := openHistory()
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		return
	}
	defer hs.Close()
	if _, err := hs.Record(cmd.Context(), res); err != nil {
		logger.Warn("recording run failed", zap.String("id", res.ID), zap.Error(err))
	}
}

func writeArticle(cmd *cobra.Command, res types.PipelineResult) error {
	e := history.EntryFrom(res)
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return history.WriteArticle(cmd.OutOrStdout(), history.FormatMarkdown, e)
	}
	if err := history.WriteArticleFile(out, e); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Article written to %s\n", out)
	return nil
}

func requestFromFlags(cmd *cobra.Command) types.ContentRequest {
	f := cmd.Flags()
	topic, _ := f.GetString("topic")
	category, _ := f.GetString("category")
	industry, _ := f.GetString("industry")
	audience, _ := f.GetString("audience")
	keywords, _ := f.GetStringSlice("keywords")
	length, _ := f.GetString("length")
	urls, _ := f.GetStringArray("source-url")
	extra, _ := f.GetString("context")

	return types.ContentRequest{
		Topic:             topic,
		Category:          category,
		Industry:          industry,
		TargetAudience:    audience,
		SEOKeywords:       keywords,
		ContentLength:     types.ContentLength(strings.ToLower(length)),
		SourceURLs:        urls,
		AdditionalContext: extra,
	}
}

// runConfigFromFlags overrides base with the pipeline flags the user set.
func runConfigFromFlags(cmd *cobra.Command, base types.RunConfig) types.RunConfig {
	f := cmd.Flags()
	if f.Changed("threshold") {
		v, _ := f.GetFloat64("threshold")
		base.AcceptanceThreshold = &v
	}
	if f.Changed("max-rounds") {
		base.MaxRounds, _ = f.GetInt("max-rounds")
	}
	if f.Changed("top-k") {
		v, _ := f.GetInt("top-k")
		base.TopK = &v
	}
	if f.Changed("timeout") {
		base.RequestTimeout, _ = f.GetDuration("timeout")
	}
	return base
}

func printSummary(w io.Writer, res types.PipelineResult) {
	fmt.Fprintf(w, "Run %s: %s", res.ID, res.State)
	if res.FinalFeedback != nil {
		fmt.Fprintf(w, " (score %.2f/10 after %d round(s), %s)", res.FinalFeedback.Score, res.RoundsUsed, res.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	for _, r := range res.Rounds {
		marker := ""
		if !r.Improved {
			marker = "  (no improvement)"
		}
		fmt.Fprintf(w, "  round %d: %5.2f  %4d words%s\n", r.Draft.Round, r.Feedback.Score, r.Draft.WordCount, marker)
	}
	if res.Failure != nil {
		fmt.Fprintf(w, "  failure: %s\n", res.Failure)
	}
	if fb := res.FinalFeedback; fb != nil && len(fb.Issues) > 0 {
		fmt.Fprintf(w, "  unresolved issues:\n")
		for _, is := range fb.Issues {
			fmt.Fprintf(w, "    - %s\n", is)
		}
	}
	if v := res.Validation; v != nil {
		for _, e := range v.Errors {
			fmt.Fprintf(w, "  content error: %s\n", e)
		}
		for _, warn := range v.Warnings {
			fmt.Fprintf(w, "  content warning: %s\n", warn)
		}
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}

func addGenerateFlags(f *pflag.FlagSet) {
	f.String("topic", "", "article topic (required)")
	f.String("category", "", "editorial category, e.g. \"Digital Transformation\"")
	f.String("industry", "", "target industry, e.g. Healthcare")
	f.String("audience", "", "target audience (default \""+types.DefaultTargetAudience+"\")")
	f.StringSlice("keywords", nil, "SEO keywords, comma-separated, in priority order")
	f.String("length", string(types.LengthMedium), "content length: short, medium, long")
	f.StringArray("source-url", nil, "reference page to research (repeatable, up to 5)")
	f.String("context", "", "additional requirements for the article")
	f.Float64("threshold", 0, "acceptance score threshold (default from config, 9.0)")
	f.Int("max-rounds", 0, "maximum number of drafts including the first (1-10)")
	f.Int("top-k", 0, "number of exemplars used for style conditioning; 0 disables it (default from config, 3)")
	f.Duration("timeout", 0, "deadline for the whole run (default from config, 15m)")
	f.Bool("json", false, "print the full pipeline result as JSON")
	f.String("out", "", "write the article to this file (.md or .html)")
	f.Bool("no-history", false, "do not record the run in the history database")
}

func init() {
	addGenerateFlags(generateCmd.Flags())
	generateCmd.MarkFlagRequired("topic")

	rootCmd.AddCommand(generateCmd)
}
