package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

type sessionBody struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type entryBody struct {
	ID        string `json:"id"`
	Speaker   string `json:"speaker"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// SessionCmd creates the session command group.
func SessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversation sessions",
	}
	cmd.AddCommand(sessionCreateCmd())
	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionDeleteCmd())
	cmd.AddCommand(sessionSayCmd())
	return cmd
}

func sessionCreateCmd() *cobra.Command {
	var ownerID, title string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post("/sessions", map[string]string{"owner_id": ownerID, "title": title})
			if err != nil {
				return err
			}
			var s sessionBody
			if err := json.Unmarshal(resp.Data, &s); err != nil {
				return err
			}
			fmt.Println(s.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner id")
	cmd.Flags().StringVar(&title, "title", "", "Session title")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func sessionListCmd() *cobra.Command {
	var ownerID, cursor string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			q := url.Values{}
			q.Set("owner_id", ownerID)
			q.Set("limit", strconv.Itoa(limit))
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			resp, err := api.Get("/sessions?" + q.Encode())
			if err != nil {
				return err
			}
			var page struct {
				Items   []sessionBody `json:"items"`
				Cursor  string        `json:"cursor"`
				HasMore bool          `json:"has_more"`
			}
			if err := json.Unmarshal(resp.Data, &page); err != nil {
				return err
			}
			for _, s := range page.Items {
				fmt.Printf("%s  %-30s %s\n", s.ID, s.Title, s.UpdatedAt)
			}
			if page.HasMore {
				fmt.Printf("more: --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner id")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Page size")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get("/sessions/" + args[0])
			if err != nil {
				return err
			}
			var body struct {
				Session sessionBody `json:"session"`
				Entries []entryBody `json:"entries"`
			}
			if err := json.Unmarshal(resp.Data, &body); err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", body.Session.Title, body.Session.ID)
			for _, e := range body.Entries {
				fmt.Printf("  %s: %s\n", e.Speaker, e.Content)
			}
			return nil
		},
	}
}

func sessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its indexed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete("/sessions/" + args[0]); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
}

func sessionSayCmd() *cobra.Command {
	var speaker string
	cmd := &cobra.Command{
		Use:   "say <session-id> <content>",
		Short: "Append an entry to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post("/sessions/"+args[0]+"/entries",
				map[string]string{"speaker": speaker, "content": args[1]})
			if err != nil {
				return err
			}
			var e entryBody
			if err := json.Unmarshal(resp.Data, &e); err != nil {
				return err
			}
			fmt.Println(e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&speaker, "speaker", "", "Speaker name")
	cmd.MarkFlagRequired("speaker")
	return cmd
}
