// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/ontoguide/internal/expr"
	"github.com/pdiddy/ontoguide/internal/extract"
)

var parseCmd = &cobra.Command{
	Use:   "parse <expression>",
	Short: "Print the node sequence of a membership expression",
	Long: `Parse flattens a class expression into the leveled node sequence the
extraction engine walks. With --category the expression is taken from the
named category's membership expressions in the ontology.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if c, _ := cmd.Flags().GetString("category"); c != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runParse,
}

func init() {
	parseCmd.Flags().String("ontology", "", "ontology YAML file")
	parseCmd.Flags().String("category", "", "parse the membership expressions of this category")
	parseCmd.Flags().Bool("json", false, "output nodes as JSON")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if path, _ := cmd.Flags().GetString("ontology"); path != "" {
		v.Set("ontology.path", path)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	onto, err := loadOntology(cfg.Ontology)
	if err != nil {
		return err
	}

	var nodes []expr.Node
	if category, _ := cmd.Flags().GetString("category"); category != "" {
		nodes, err = extract.NewAnalyzer(onto, nil, cfg.Analysis, logger).Nodes(category)
	} else {
		parser := expr.New(onto, onto.Prefixes...)
		var shape expr.Shape
		if shape, err = parser.Classify(args[0]); err == nil {
			fmt.Fprintf(os.Stderr, "shape: %s\n", shape.Kind)
			nodes, err = parser.Parse(args[0], 0)
		}
	}
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}
	for _, n := range nodes {
		fmt.Fprintln(os.Stdout, n.String())
	}
	return nil
}
