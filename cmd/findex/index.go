package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	indexCollection  string
	indexPersistPath string
	indexRecursive   bool
	indexClearFirst  bool
	indexExcludeDirs []string
)

// indexCmd indexes a directory into a collection
var indexCmd = &cobra.Command{
	Use:   "index <directory>",
	Short: "Index a directory's entries for semantic search",
	Long: `Index every file under a directory into a vector collection.

Each entry is stored by its name, relative path, and extension so it
can later be found with a natural-language query.

Examples:
  # Index the current directory
  findex index .

  # Index into a named collection without descending into subdirectories
  findex index --collection docs --recursive=false ~/Documents

  # Skip build artifacts
  findex index --exclude-dir node_modules --exclude-dir .git ~/src`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexCollection, "collection", "", "target collection (server default if empty)")
	indexCmd.Flags().StringVar(&indexPersistPath, "persist-path", "", "vector store location (server default if empty)")
	indexCmd.Flags().BoolVar(&indexRecursive, "recursive", true, "descend into subdirectories")
	indexCmd.Flags().BoolVar(&indexClearFirst, "clear", false, "remove existing records before indexing")
	indexCmd.Flags().StringArrayVar(&indexExcludeDirs, "exclude-dir", nil, "directory name to skip (repeatable)")
}

// IndexRequest matches internal/http/types.go IndexRequest
type IndexRequest struct {
	PersistPath string   `json:"persist_path,omitempty"`
	Collection  string   `json:"collection,omitempty"`
	Directory   string   `json:"directory"`
	Recursive   *bool    `json:"recursive,omitempty"`
	ClearFirst  *bool    `json:"clear_first,omitempty"`
	ExcludeDirs []string `json:"exclude_dirs,omitempty"`
}

// IndexResponse matches internal/http/types.go IndexResponse
type IndexResponse struct {
	Collection   string `json:"collection"`
	Root         string `json:"root"`
	FilesIndexed int    `json:"files_indexed"`
	Cleared      int    `json:"cleared"`
}

// runIndex handles the index command
func runIndex(cmd *cobra.Command, args []string) error {
	// The daemon resolves paths relative to its own working directory,
	// so send an absolute path.
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}

	req := IndexRequest{
		PersistPath: indexPersistPath,
		Collection:  indexCollection,
		Directory:   dir,
		Recursive:   &indexRecursive,
		ClearFirst:  &indexClearFirst,
		ExcludeDirs: indexExcludeDirs,
	}

	var resp IndexResponse
	if err := postJSON("/api/v1/index", req, &resp); err != nil {
		return err
	}

	fmt.Printf("Indexed %d file(s) into %q (cleared %d)\n",
		resp.FilesIndexed, resp.Collection, resp.Cleared)
	fmt.Printf("Root: %s\n", resp.Root)
	return nil
}
