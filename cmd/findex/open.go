package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	openCollection  string
	openPersistPath string
	openOutput      string
)

// openCmd fetches the file behind a search hit
var openCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Fetch the file behind a search result",
	Long: `Fetch the contents of an indexed file by its record id.

Record ids come from 'findex search --ids'. The file bytes are written
to stdout, or to a file with --output.

Examples:
  # Print a hit to stdout
  findex open 9f86d081884c7d65...

  # Save it to disk
  findex open --output report.pdf 9f86d081884c7d65...`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func init() {
	openCmd.Flags().StringVar(&openCollection, "collection", "", "collection holding the record (server default if empty)")
	openCmd.Flags().StringVar(&openPersistPath, "persist-path", "", "vector store location (server default if empty)")
	openCmd.Flags().StringVarP(&openOutput, "output", "o", "", "write file to this path instead of stdout")
}

// runOpen handles the open command
func runOpen(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if openCollection != "" {
		q.Set("collection", openCollection)
	}
	if openPersistPath != "" {
		q.Set("persist_path", openPersistPath)
	}

	reqURL := fmt.Sprintf("%s/api/v1/files/%s", serverURL, url.PathEscape(args[0]))
	if encoded := q.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	client := &http.Client{
		Timeout: 5 * time.Minute,
	}

	resp, err := client.Get(reqURL)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	out := io.Writer(os.Stdout)
	if openOutput != "" {
		f, err := os.Create(openOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", openOutput, err)
		}
		defer f.Close()
		out = f
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read file contents: %w", err)
	}

	if openOutput != "" {
		fmt.Fprintf(os.Stderr, "[findex] Wrote %d byte(s) to %s\n", n, openOutput)
	}
	return nil
}
