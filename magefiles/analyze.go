//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Analyze builds the CLI and analyzes every document under documents/.
func Analyze() error {
	mg.Deps(Build)
	docs, err := filepath.Glob(filepath.Join("documents", "*.txt"))
	if err != nil {
		return err
	}
	md, err := filepath.Glob(filepath.Join("documents", "*.md"))
	if err != nil {
		return err
	}
	docs = append(docs, md...)
	if len(docs) == 0 {
		fmt.Println("[analyze] No documents found in documents/.")
		return nil
	}
	return sh.RunV(filepath.Join(binDir, binName), append([]string{"analyze"}, docs...)...)
}

// Index re-indexes the batch files under results/batches/.
func Index() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "results", "index")
}
