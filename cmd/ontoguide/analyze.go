// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/ontoguide/internal/acquire"
	"github.com/pdiddy/ontoguide/internal/extract"
	"github.com/pdiddy/ontoguide/internal/oracle"
	"github.com/pdiddy/ontoguide/internal/store"
	"github.com/pdiddy/ontoguide/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [documents...]",
	Short: "Analyze documents against the ontology's root categories",
	Long: `Analyze reads each document (.txt or .md), walks every configured root
category of the ontology, and asks the oracle the questions each category
implies. Each document's results are written to results/batches/<name>.yaml
and indexed in the results store. Documents older than their results are
skipped unless --force is given.

Arguments may also be http(s) URLs of text documents; they are downloaded
into results/documents/ first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("ontology", "", "ontology YAML file")
	analyzeCmd.Flags().StringSlice("root", nil, "root categories to analyze (default: the ontology's root class)")
	analyzeCmd.Flags().String("mode", "", "traversal mode: combined or subclass")
	analyzeCmd.Flags().Int("max-depth", 0, "maximum traversal depth (-1 = unlimited)")
	analyzeCmd.Flags().String("backend", "", "oracle backend: openrouter or claude")
	analyzeCmd.Flags().String("model", "", "default oracle model")
	analyzeCmd.Flags().Bool("history", false, "send earlier questions and answers with each question")
	analyzeCmd.Flags().Bool("force", false, "re-analyze documents with up-to-date results")
	analyzeCmd.Flags().Bool("no-index", false, "write batch files without indexing them")

	bindFlags(analyzeCmd, map[string]string{
		"ontology":  "ontology.path",
		"root":      "analysis.root_categories",
		"mode":      "analysis.mode",
		"max-depth": "analysis.max_depth",
		"backend":   "oracle.backend",
		"model":     "oracle.model",
		"history":   "oracle.keep_history",
	})

	rootCmd.AddCommand(analyzeCmd)
}

// documentsDir holds downloaded documents under the results directory.
const documentsDir = "documents"

// fetchDocuments downloads the URLs among args.
func fetchDocuments(ctx context.Context, cfg types.HTTPConfig, args []string, outDir string) ([]string, error) {
	f := acquire.NewFetcher(cfg, outDir, logger)
	paths, summary, err := f.FetchAll(ctx, args, os.Stdout)
	if err != nil {
		return nil, err
	}
	if summary.HasFailures() {
		logger.Warnw("some documents could not be downloaded", "failed", summary.Failed)
	}
	return paths, nil
}

// bindFlags binds each flag of cmd to its config key.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	backend, err := oracle.NewBackend(cfg.Oracle)
	if err != nil {
		return err
	}

	opts := extract.BatchOptions{
		OutDir: filepath.Join(cfg.Store.ResultsDir, store.BatchesDir),
		Model:  cfg.Oracle.Model,
	}
	opts.Force, _ = cmd.Flags().GetBool("force")

	ctx := cmd.Context()

	if noIndex, _ := cmd.Flags().GetBool("no-index"); !noIndex {
		st, err := store.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		opts.Save = func(b types.AnalysisBatch) error {
			return st.Save(ctx, b)
		}
	}

	open := func(doc extract.Document) (extract.Oracle, error) {
		return oracle.NewConversation(backend, doc.Text, cfg.Oracle, logger.With("document", doc.Name)), nil
	}

	docDir := filepath.Join(cfg.Store.ResultsDir, documentsDir)
	paths, err := fetchDocuments(ctx, cfg.Questions.HTTPConfig, args, docDir)
	if err != nil {
		return err
	}

	summary, err := extract.AnalyzeAll(ctx, analyzer, open, paths, opts, os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d document(s) failed analysis", summary.Failed)
	}
	return nil
}
