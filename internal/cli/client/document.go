package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// AddCmd indexes a free-form document from a file or stdin.
func AddCmd() *cobra.Command {
	var (
		documentID string
		ownerID    string
		file       string
		async      bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Index a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			var text []byte
			var err error
			if file != "" {
				text, err = os.ReadFile(file)
			} else {
				text, err = os.ReadFile("/dev/stdin")
			}
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post("/documents", map[string]interface{}{
				"document_id": documentID,
				"owner_id":    ownerID,
				"text":        string(text),
				"async":       async,
			})
			if err != nil {
				return err
			}

			if async {
				fmt.Println("queued")
				return nil
			}
			var stats struct {
				ChunksCreated int   `json:"chunks_created"`
				Enriched      bool  `json:"enriched"`
				DurationMS    int64 `json:"duration_ms"`
			}
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return err
			}
			fmt.Printf("indexed %d chunks in %dms (enriched: %v)\n", stats.ChunksCreated, stats.DurationMS, stats.Enriched)
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "id", "", "Document id")
	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner id")
	cmd.Flags().StringVarP(&file, "file", "f", "", "File to index (default stdin)")
	cmd.Flags().BoolVar(&async, "async", false, "Queue indexing in the background")
	cmd.MarkFlagRequired("id")

	return cmd
}

// DeleteCmd removes a document's chunks from the index.
func DeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete an indexed document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Delete("/documents/" + args[0])
			if err != nil {
				return err
			}
			var out struct {
				Deleted int `json:"deleted"`
			}
			if err := json.Unmarshal(resp.Data, &out); err != nil {
				return err
			}
			fmt.Printf("deleted %d chunks\n", out.Deleted)
			return nil
		},
	}
}

// HealthCmd checks server health.
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Get("/health"); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}
