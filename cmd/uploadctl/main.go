// uploadctl is the admin client for bulk project uploads. It pushes one
// or more JSON files to the dashboard backend and renders the streamed
// progress as a single bar across all files.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/infradash/infradash-backend/internal/uploadclient"
)

var (
	serverURL string
	apiKey    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "uploadctl",
		Short: "Admin client for the infradash bulk upload pipeline",
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "backend base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("ADMIN_API_KEY"), "admin API key")

	pushCmd := &cobra.Command{
		Use:   "push <file...>",
		Short: "Upload one or more project JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPush,
	}
	rootCmd.AddCommand(pushCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPush(cmd *cobra.Command, args []string) error {
	if apiKey == "" {
		return fmt.Errorf("an admin API key is required (--api-key or ADMIN_API_KEY)")
	}

	client := &http.Client{Timeout: 0} // streams stay open for the whole job

	tokens := uploadclient.NewTokenHolder(&uploadclient.HTTPTokenSource{
		BaseURL: serverURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	})

	uploader := uploadclient.NewUploader(serverURL, apiKey, tokens)
	uploader.Client = client

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("uploading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(false),
	)

	result, err := uploader.Upload(cmd.Context(), args, func(percent int) {
		_ = bar.Set(percent)
	})
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return err
	}

	fmt.Printf("uploaded %d file(s): %d records, %d stored, %d failed\n",
		result.Files, result.TotalCount, result.SuccessCount, result.FailureCount)

	if !result.Fully() {
		// partial success: records failed validation or persistence
		os.Exit(2)
	}
	return nil
}
