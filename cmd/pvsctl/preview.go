package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

type SessionRow struct {
	Active        bool   `json:"active"`
	SessionID     string `json:"sessionId"`
	PreviewURL    string `json:"previewUrl"`
	SyncURL       string `json:"syncUrl"`
	Status        string `json:"status"`
	ExpiresAt     string `json:"expiresAt"`
	LastActivity  string `json:"lastActivity"`
	FileCount     int    `json:"fileCount"`
	FilesSyncedAt string `json:"filesSyncedAt"`
}

type StartResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"sessionId"`
	PreviewURL string `json:"previewUrl"`
	SyncURL    string `json:"syncUrl"`
	Status     string `json:"status"`
	ExpiresAt  string `json:"expiresAt"`
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview session commands",
}

var previewStartCmd = &cobra.Command{
	Use:   "start <workspace-id>",
	Short: "Start (or reattach to) a preview session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(apiURL)

		var resp StartResponse
		err := client.Post("/preview/start", map[string]string{"workspaceId": args[0]}, &resp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Preview session %s is %s.\n", resp.SessionID, resp.Status)
		fmt.Printf("Preview URL: %s\n", resp.PreviewURL)
		fmt.Printf("Expires at:  %s\n", resp.ExpiresAt)
	},
}

var previewStatusCmd = &cobra.Command{
	Use:   "status <workspace-id>",
	Short: "Show the workspace's active session, if any",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(apiURL)

		var row SessionRow
		err := client.Get("/preview/start?workspaceId="+url.QueryEscape(args[0]), &row)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(row)
	},
}

var previewStopCmd = &cobra.Command{
	Use:   "stop <workspace-id>",
	Short: "Stop the workspace's preview session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(apiURL)

		err := client.Delete("/preview/start?workspaceId="+url.QueryEscape(args[0]), nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Preview session stopped.")
	},
}

var previewExtendCmd = &cobra.Command{
	Use:   "extend <workspace-id>",
	Short: "Extend the session's expiration deadline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(apiURL)

		var resp struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		err := client.Post("/preview/update", map[string]string{"workspaceId": args[0]}, &resp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp.Message)
	},
}

func init() {
	previewCmd.AddCommand(previewStartCmd)
	previewCmd.AddCommand(previewStatusCmd)
	previewCmd.AddCommand(previewStopCmd)
	previewCmd.AddCommand(previewExtendCmd)
	rootCmd.AddCommand(previewCmd)
}
