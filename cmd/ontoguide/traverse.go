// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/ontoguide/internal/expr"
	"github.com/pdiddy/ontoguide/internal/ontology"
	"github.com/pdiddy/ontoguide/pkg/types"
)

var traverseCmd = &cobra.Command{
	Use:   "traverse <category>",
	Short: "Print the categories reachable from a root category",
	Long: `Traverse runs the category depth-first search from the given root and
prints every visited category with its depth, parent, and the edge that
reached it. No oracle calls are made.`,
	Args: cobra.ExactArgs(1),
	RunE: runTraverse,
}

func init() {
	traverseCmd.Flags().String("ontology", "", "ontology YAML file")
	traverseCmd.Flags().String("mode", "", "traversal mode: combined or subclass")
	traverseCmd.Flags().Int("max-depth", 0, "maximum traversal depth (-1 = unlimited)")
	traverseCmd.Flags().Bool("json", false, "output the traversal as JSON")

	rootCmd.AddCommand(traverseCmd)
}

// traversalOutput is the JSON form of a traversal.
type traversalOutput struct {
	Root            string                  `json:"root"`
	Mode            types.TraversalMode     `json:"mode"`
	MaxDepthReached int                     `json:"max_depth_reached"`
	Path            []string                `json:"path"`
	Records         []types.TraversalRecord `json:"records"`
}

func runTraverse(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if path, _ := cmd.Flags().GetString("ontology"); path != "" {
		v.Set("ontology.path", path)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	mode := cfg.Analysis.Mode
	if m, _ := cmd.Flags().GetString("mode"); m != "" {
		mode = types.TraversalMode(m)
	}
	maxDepth := cfg.Analysis.MaxDepth
	if cmd.Flags().Changed("max-depth") {
		maxDepth, _ = cmd.Flags().GetInt("max-depth")
	}

	onto, err := loadOntology(cfg.Ontology)
	if err != nil {
		return err
	}
	graph := ontology.NewGraph(onto, expr.New(onto, onto.Prefixes...))
	result, err := graph.Traverse(args[0], mode, maxDepth)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatTraversal(args[0], mode, result, jsonOutput)
}

func formatTraversal(root string, mode types.TraversalMode, result ontology.Result, jsonOutput bool) error {
	if jsonOutput {
		out := traversalOutput{
			Root:            root,
			Mode:            mode,
			MaxDepthReached: result.MaxDepthReached,
			Records:         result.Records,
		}
		for _, r := range result.Records {
			out.Path = append(out.Path, r.Category)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(os.Stdout, "%-5s  %-5s  %-40s  %-25s  %s\n", "Order", "Depth", "Category", "Parent", "Relation")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, r := range result.Records {
		name := strings.Repeat("  ", r.Depth) + r.Category
		fmt.Fprintf(os.Stdout, "%-5d  %-5d  %-40s  %-25s  %s\n", r.Order, r.Depth, name, r.Parent, r.Relation)
	}
	fmt.Fprintf(os.Stdout, "\n%d categories, max depth %d\n", len(result.Records), result.MaxDepthReached)
	return nil
}
