// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ontoguide/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Query and export stored analysis results",
	Long: `Results manages the local SQLite store of analysis batches. Use
subcommands to list batches, show one, search the stored questions and
answers, list extracted entities, re-index batch files, or export a batch.`,
}

// --- list subcommand ---

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored batches, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			batches, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return printJSON(batches)
			}
			if len(batches) == 0 {
				fmt.Println("No batches stored.")
				return nil
			}
			fmt.Fprintf(os.Stdout, "%-36s  %-30s  %-20s  %5s  %6s  %8s\n",
				"ID", "Document", "Created", "Roots", "Failed", "Existing")
			fmt.Fprintln(os.Stdout, strings.Repeat("-", 115))
			for _, b := range batches {
				fmt.Fprintf(os.Stdout, "%-36s  %-30s  %-20s  %5d  %6d  %8d\n",
					b.ID, truncate(b.Document, 30), b.CreatedAt.Format("2006-01-02 15:04:05"),
					b.Roots, b.Failed, b.Existing)
			}
			return nil
		})
	},
}

// --- show subcommand ---

var resultsShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Print a stored batch as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			b, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return printJSON(b)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(b)
		})
	},
}

// --- search subcommand ---

var resultsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored questions and answers",
	Long: `Search queries stored oracle contexts using FTS5 full-text search over
prompts and answers, structured filters (document, category, property,
polarity), or both.`,
	RunE: runResultsSearch,
}

func runResultsSearch(cmd *cobra.Command, args []string) error {
	opts := store.QueryOptions{Query: strings.Join(args, " ")}
	opts.Document, _ = cmd.Flags().GetString("document")
	opts.Category, _ = cmd.Flags().GetString("category")
	opts.Element, _ = cmd.Flags().GetString("property")
	opts.MaxResults, _ = cmd.Flags().GetInt("limit")
	polarity, _ := cmd.Flags().GetString("polarity")
	switch store.Polarity(polarity) {
	case store.PolarityAny, store.PolarityPositive, store.PolarityNegative:
		opts.Polarity = store.Polarity(polarity)
	default:
		return fmt.Errorf("unsupported polarity %q: use positive or negative", polarity)
	}
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --document, --category, --property, or --polarity")
	}

	return withStore(func(st *store.Store) error {
		hits, err := st.Search(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(hits)
		}
		if len(hits) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "%-4s  %-20s  %-20s  %-45s  %s\n", "Rank", "Document", "Category", "Prompt", "Answer")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
		for i, h := range hits {
			answer := h.Response
			if !h.Positive {
				answer = "(none)"
			}
			fmt.Fprintf(os.Stdout, "%-4d  %-20s  %-20s  %-45s  %s\n",
				i+1, truncate(h.Document, 20), truncate(h.Category, 20), truncate(h.Prompt, 45), answer)
		}
		fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
		return nil
	})
}

// --- entities subcommand ---

var resultsEntitiesCmd = &cobra.Command{
	Use:   "entities [category]",
	Short: "List extracted entities, optionally of one category",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := ""
		if len(args) == 1 {
			category = args[0]
		}
		return withStore(func(st *store.Store) error {
			hits, err := st.Entities(cmd.Context(), category)
			if err != nil {
				return err
			}
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return printJSON(hits)
			}
			for _, h := range hits {
				fmt.Fprintf(os.Stdout, "%-30s  %-30s  %s\n", truncate(h.Document, 30), truncate(h.Name, 30), strings.Join(h.Domain, ", "))
			}
			fmt.Fprintf(os.Stdout, "\n%d entities\n", len(hits))
			return nil
		})
	},
}

// --- index subcommand ---

var resultsIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index batch files from results/batches/ into the store",
	Long: `Index reads the batch YAML files under results/batches/ and stores
them in the SQLite index. Files unchanged since the last run are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			summary, err := st.Ingest(cmd.Context(), os.Stdout)
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d batch file(s) failed indexing", summary.Failed)
			}
			return nil
		})
	},
}

// --- export subcommand ---

var resultsExportCmd = &cobra.Command{
	Use:   "export <batch-id>",
	Short: "Export a batch's individuals and assertions to YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return withStore(func(st *store.Store) error {
			var (
				path string
				err  error
			)
			switch format {
			case "yaml", "":
				path, err = st.ExportYAML(cmd.Context(), args[0])
			case "json":
				path, err = st.ExportJSON(cmd.Context(), args[0])
			default:
				return fmt.Errorf("unsupported format %q: use yaml or json", format)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Exported to %s\n", path)
			return nil
		})
	},
}

// --- shared helpers ---

func withStore(fn func(*store.Store) error) error {
	st, err := store.NewStore(storeConfig(viper.GetViper()))
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	resultsCmd.PersistentFlags().Bool("json", false, "output as JSON")

	resultsSearchCmd.Flags().String("document", "", "filter by document name")
	resultsSearchCmd.Flags().String("category", "", "filter by the category that asked")
	resultsSearchCmd.Flags().String("property", "", "filter by property")
	resultsSearchCmd.Flags().String("polarity", "", "filter by answer: positive or negative")
	resultsSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")

	resultsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsSearchCmd)
	resultsCmd.AddCommand(resultsEntitiesCmd)
	resultsCmd.AddCommand(resultsIndexCmd)
	resultsCmd.AddCommand(resultsExportCmd)

	rootCmd.AddCommand(resultsCmd)
}
