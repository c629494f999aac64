package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchCollection  string
	searchPersistPath string
	searchLimit       int
	searchShowIDs     bool
)

// searchCmd searches a collection by meaning
var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search indexed files with a natural-language query",
	Long: `Search a collection for files whose name, path, or extension is
semantically close to the query.

Results are ordered most similar first; lower scores are better.

Examples:
  # Find quarterly report documents
  findex search quarterly report pdf

  # Limit results and print record ids
  findex search --limit 5 --ids meeting notes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchCollection, "collection", "", "collection to search (server default if empty)")
	searchCmd.Flags().StringVar(&searchPersistPath, "persist-path", "", "vector store location (server default if empty)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (server default if 0)")
	searchCmd.Flags().BoolVar(&searchShowIDs, "ids", false, "print record ids for use with 'findex open'")
}

// SearchRequest matches internal/http/types.go SearchRequest
type SearchRequest struct {
	PersistPath string `json:"persist_path,omitempty"`
	Collection  string `json:"collection,omitempty"`
	Query       string `json:"query"`
	Limit       int    `json:"limit,omitempty"`
}

// SearchHit matches internal/http/types.go SearchHit
type SearchHit struct {
	ID           string  `json:"id"`
	Score        float32 `json:"score"`
	FileName     string  `json:"file_name"`
	RelativePath string  `json:"relative_path"`
	Extension    string  `json:"extension"`
}

// SearchResponse matches internal/http/types.go SearchResponse
type SearchResponse struct {
	Collection string      `json:"collection"`
	Hits       []SearchHit `json:"hits"`
}

// runSearch handles the search command
func runSearch(cmd *cobra.Command, args []string) error {
	req := SearchRequest{
		PersistPath: searchPersistPath,
		Collection:  searchCollection,
		Query:       strings.Join(args, " "),
		Limit:       searchLimit,
	}

	var resp SearchResponse
	if err := postJSON("/api/v1/search", req, &resp); err != nil {
		return err
	}

	if len(resp.Hits) == 0 {
		fmt.Printf("No results in %q\n", resp.Collection)
		return nil
	}

	for i, hit := range resp.Hits {
		fmt.Printf("%2d. %-40s %.4f\n", i+1, hit.RelativePath, hit.Score)
		if searchShowIDs {
			fmt.Printf("    id: %s\n", hit.ID)
		}
	}
	return nil
}
