package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jfoster/retain/internal/card"
)

// deckFile is the on-disk deck format: one deck with its cards.
type deckFile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cards []struct {
		ID          string    `json:"id"`
		Prompt      string    `json:"prompt"`
		Answer      string    `json:"answer"`
		PromptImage string    `json:"promptImage,omitempty"`
		AnswerImage string    `json:"answerImage,omitempty"`
		Kind        card.Kind `json:"kind"`
		Options     []string  `json:"options,omitempty"`
	} `json:"cards"`
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a deck from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read deck file: %w", err)
		}
		var df deckFile
		if err := json.Unmarshal(raw, &df); err != nil {
			return fmt.Errorf("parse deck file: %w", err)
		}
		if df.Name == "" {
			return fmt.Errorf("deck file has no name")
		}
		if df.ID == "" {
			df.ID = uuid.NewString()
		}

		st, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		if err := st.Cards().PutDeck(ctx, card.Deck{ID: df.ID, Name: df.Name}); err != nil {
			return fmt.Errorf("store deck: %w", err)
		}

		for i, c := range df.Cards {
			if c.Prompt == "" || c.Answer == "" {
				return fmt.Errorf("card %d: prompt and answer are required", i)
			}
			if c.Kind == 0 {
				c.Kind = card.Simple
			}
			if c.Kind == card.Choice && len(c.Options) < 2 {
				return fmt.Errorf("card %d: choice cards need at least two options", i)
			}
			id := c.ID
			if id == "" {
				id = uuid.NewString()
			}
			err := st.Cards().PutCard(ctx, card.Card{
				ID:          id,
				DeckID:      df.ID,
				Prompt:      c.Prompt,
				Answer:      c.Answer,
				PromptImage: c.PromptImage,
				AnswerImage: c.AnswerImage,
				Kind:        c.Kind,
				Options:     c.Options,
				Position:    i,
			})
			if err != nil {
				return fmt.Errorf("store card %d: %w", i, err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported deck %q with %d card(s).\n", df.Name, len(df.Cards))
		return nil
	},
}
