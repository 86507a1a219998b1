package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type searchRequest struct {
	Query        string   `json:"query"`
	OwnerID      string   `json:"owner_id,omitempty"`
	DocumentID   string   `json:"document_id,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	MinScore     *float64 `json:"min_score,omitempty"`
	Hybrid       bool     `json:"hybrid,omitempty"`
	Rerank       *bool    `json:"rerank,omitempty"`
	Diversify    *bool    `json:"diversify,omitempty"`
	Hierarchical bool     `json:"hierarchical,omitempty"`
}

type searchResult struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Tier       string  `json:"tier"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		ownerID      string
		documentID   string
		limit        int
		hybrid       bool
		hierarchical bool
		noRerank     bool
		noDiversify  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed conversations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			req := searchRequest{
				Query:        args[0],
				OwnerID:      ownerID,
				DocumentID:   documentID,
				Limit:        limit,
				Hybrid:       hybrid,
				Hierarchical: hierarchical,
			}
			if noRerank {
				f := false
				req.Rerank = &f
			}
			if noDiversify {
				f := false
				req.Diversify = &f
			}

			resp, err := api.Post("/search", req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			var out searchResponse
			if err := json.Unmarshal(resp.Data, &out); err != nil {
				return fmt.Errorf("failed to parse search results: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				encoded, _ := json.MarshalIndent(out, "", "  ")
				fmt.Println(string(encoded))
				return nil
			}

			if len(out.Results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, r := range out.Results {
				text := r.Text
				if len(text) > 200 {
					text = text[:200] + "..."
				}
				fmt.Printf("%d. [%.3f %s] %s#%d\n   %s\n", i+1, r.Score, r.Tier, r.DocumentID, r.ChunkIndex,
					strings.ReplaceAll(text, "\n", "\n   "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "Restrict to one owner")
	cmd.Flags().StringVar(&documentID, "document", "", "Restrict to one document")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "Fuse lexical retrieval with vector retrieval")
	cmd.Flags().BoolVar(&hierarchical, "hierarchical", false, "Narrow to top documents before chunk retrieval")
	cmd.Flags().BoolVar(&noRerank, "no-rerank", false, "Skip the relevance reranking stage")
	cmd.Flags().BoolVar(&noDiversify, "no-diversify", false, "Skip MMR diversification")

	return cmd
}
