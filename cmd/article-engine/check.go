// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-engine/internal/generation"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the generation backend, corpus, and history database",
	Long: `Check confirms that the configured generation backend answers and serves
the configured model, then reports the size of the exemplar corpus and the
number of recorded runs. It exits non-zero when the backend is unavailable.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	out := cmd.OutOrStdout()
	g := appConfig.Generation

	backend, err := generation.NewBackend(g, nil)
	if err != nil {
		return err
	}
	backendErr := checkBackend(cmd.Context(), out, backend, g.Model, timeout)

	mgr, store, err := openCorpus(cmd.Context(), appConfig.Corpus, false)
	if err != nil {
		fmt.Fprintf(out, "corpus   %-40s FAILED: %v\n", appConfig.Corpus.DBPath, err)
	} else {
		fmt.Fprintf(out, "corpus   %-40s ok (%d exemplars)\n", appConfig.Corpus.DBPath, mgr.Size())
		store.Close()
	}

	hs, err := openHistory()
	if err != nil {
		fmt.Fprintf(out, "history  %-40s FAILED: %v\n", appConfig.HistoryDBPath, err)
	} else {
		st, err := hs.Stats(cmd.Context())
		hs.Close()
		if err != nil {
			fmt.Fprintf(out, "history  %-40s FAILED: %v\n", appConfig.HistoryDBPath, err)
		} else {
			fmt.Fprintf(out, "history  %-40s ok (%d runs)\n", appConfig.HistoryDBPath, st.Total)
		}
	}
	return backendErr
}

func checkBackend(ctx context.Context, out io.Writer, backend generation.Backend, model string, timeout time.Duration) error {
	label := fmt.Sprintf("%s (%s)", backend.Name(), model)
	checker, ok := backend.(generation.Checker)
	if !ok {
		fmt.Fprintf(out, "backend  %-40s skipped: no availability check\n", label)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := checker.Available(ctx); err != nil {
		fmt.Fprintf(out, "backend  %-40s FAILED: %v\n", label, err)
		return fmt.Errorf("backend %s unavailable: %w", backend.Name(), err)
	}
	fmt.Fprintf(out, "backend  %-40s ok\n", label)
	return nil
}

func init() {
	checkCmd.Flags().Duration("timeout", 10*time.Second, "deadline for the backend check")
	rootCmd.AddCommand(checkCmd)
}
