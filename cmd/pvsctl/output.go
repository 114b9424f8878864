package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
)

func printResult(v interface{}) {
	if output == "json" {
		json.NewEncoder(os.Stdout).Encode(v)
		return
	}
	printTable(v)
}

func printTable(v interface{}) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	switch data := v.(type) {
	case SessionRow:
		if !data.Active {
			fmt.Println("No active preview session.")
			return
		}
		fmt.Fprintf(w, "Session ID:\t%s\n", data.SessionID)
		fmt.Fprintf(w, "Status:\t%s\n", data.Status)
		fmt.Fprintf(w, "Preview URL:\t%s\n", data.PreviewURL)
		fmt.Fprintf(w, "Files:\t%d\n", data.FileCount)
		if data.FilesSyncedAt != "" {
			fmt.Fprintf(w, "Last sync:\t%s\n", data.FilesSyncedAt)
		}
		fmt.Fprintf(w, "Last activity:\t%s\n", data.LastActivity)
		fmt.Fprintf(w, "Expires at:\t%s\n", data.ExpiresAt)
	default:
		json.NewEncoder(os.Stdout).Encode(v)
	}
	w.Flush()
}
