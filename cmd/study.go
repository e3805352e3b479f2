package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfoster/retain/internal/card"
	"github.com/jfoster/retain/internal/fsrs"
	"github.com/jfoster/retain/internal/remote"
	"github.com/jfoster/retain/internal/session"
	"github.com/jfoster/retain/internal/store"
)

var studyCmd = &cobra.Command{
	Use:   "study [deck]",
	Short: "Study the due cards of a deck",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		st, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		deck, err := resolveDeck(ctx, st, args, out)
		if err != nil || deck == nil {
			return err
		}

		cards, err := st.Cards().DueCards(ctx, deck.ID, cfg.LearnerID, time.Now(), cfg.Study.MaxCards, 0)
		if err != nil {
			return fmt.Errorf("fetch due cards: %w", err)
		}
		if len(cards) == 0 {
			fmt.Fprintln(out, "Nothing due. Come back later.")
			return nil
		}

		sched, err := fsrs.NewScheduler(cfg.SchedulerParams())
		if err != nil {
			return fmt.Errorf("build scheduler: %w", err)
		}

		var reconciler session.Reconciler
		if cfg.RemoteEnabled() {
			reconciler = remote.New(cfg.RemoteClientConfig(), log)
		}

		mgr := session.New(session.Options{
			LearnerID: cfg.LearnerID,
			Scheduler: sched,
			States:    st.States(),
			Reviews:   st.Reviews(),
			Pending:   st.Pending(),
			Remote:    reconciler,
			Log:       log,
		})
		if err := mgr.Start(ctx, deck.ID, cards); err != nil {
			return fmt.Errorf("start session: %w", err)
		}

		in := bufio.NewScanner(cmd.InOrStdin())
		if err := runSession(ctx, mgr, in, out); err != nil {
			return err
		}

		summary, err := mgr.EndSession(ctx)
		if err != nil {
			return err
		}
		mgr.Wait()

		fmt.Fprintf(out, "\nSession done: %d reviewed, %d correct, %s.\n",
			summary.Reviewed, summary.Correct, summary.Duration.Round(time.Second))
		return nil
	},
}

// resolveDeck picks the deck named by args, or lists decks when absent.
// Returns (nil, nil) after listing.
func resolveDeck(ctx context.Context, st *store.Store, args []string, out io.Writer) (*card.Deck, error) {
	decks, err := st.Cards().Decks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	if len(decks) == 0 {
		fmt.Fprintln(out, "No decks yet. Import one with 'retain import <file>'.")
		return nil, nil
	}

	if len(args) == 0 {
		fmt.Fprintln(out, "Pick a deck:")
		for _, d := range decks {
			fmt.Fprintf(out, "  %s  (%s)\n", d.Name, d.ID)
		}
		return nil, nil
	}

	for _, d := range decks {
		if d.ID == args[0] || strings.EqualFold(d.Name, args[0]) {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("deck %q not found", args[0])
}

// runSession drives one pass over the session's cards. Typing "q" ends the
// session early; reviews already rated keep their committed state.
func runSession(ctx context.Context, mgr *session.Manager, in *bufio.Scanner, out io.Writer) error {
	for {
		cc := mgr.CurrentCard()
		if cc == nil {
			return nil
		}

		p := mgr.Progress()
		fmt.Fprintf(out, "\n[%d/%d] %s\n", p.Current, p.Total, cc.Card.Prompt)

		if cc.Card.Kind == card.Choice {
			quit, err := askChoice(mgr, cc.Card, in, out)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		} else {
			fmt.Fprint(out, "(press enter to reveal)")
			if !in.Scan() {
				return in.Err()
			}
			if strings.TrimSpace(in.Text()) == "q" {
				return nil
			}
		}

		fmt.Fprintf(out, "Answer: %s\n", cc.Card.Answer)

		quit, err := askRating(ctx, mgr, cc.Previews, in, out)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}

		mgr.NextCard()
	}
}

func askChoice(mgr *session.Manager, c card.Card, in *bufio.Scanner, out io.Writer) (quit bool, err error) {
	for i, opt := range c.Options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
	}
	for {
		fmt.Fprint(out, "choice> ")
		if !in.Scan() {
			return true, in.Err()
		}
		text := strings.TrimSpace(in.Text())
		if text == "q" {
			return true, nil
		}

		selected := ""
		for i, opt := range c.Options {
			if text == fmt.Sprint(i+1) || strings.EqualFold(text, opt) {
				selected = opt
				break
			}
		}
		if selected == "" {
			fmt.Fprintln(out, "Pick one of the numbered options.")
			continue
		}

		correct, err := mgr.AnswerChoice(selected)
		if err != nil {
			return false, err
		}
		if correct {
			fmt.Fprintln(out, "Correct!")
		} else {
			fmt.Fprintln(out, "Not quite.")
		}
		return false, nil
	}
}

func askRating(ctx context.Context, mgr *session.Manager, previews fsrs.Previews, in *bufio.Scanner, out io.Writer) (quit bool, err error) {
	fmt.Fprintf(out, "  1) again %-6s 2) hard %-6s 3) good %-6s 4) easy %s\n",
		formatInterval(previews.Again), formatInterval(previews.Hard),
		formatInterval(previews.Good), formatInterval(previews.Easy))

	for {
		fmt.Fprint(out, "rating> ")
		if !in.Scan() {
			return true, in.Err()
		}
		text := strings.TrimSpace(in.Text())
		if text == "q" {
			return true, nil
		}

		rating, ok := parseRating(text)
		if !ok {
			fmt.Fprintln(out, "Enter 1-4 (again, hard, good, easy) or q to quit.")
			continue
		}

		res, err := mgr.RateCard(ctx, rating)
		if err != nil {
			return false, err
		}
		if res.Refused {
			fmt.Fprintln(out, res.Reason)
			continue
		}
		return false, nil
	}
}

func parseRating(text string) (fsrs.Rating, bool) {
	var r fsrs.Rating
	if err := r.UnmarshalText([]byte(strings.ToLower(text))); err == nil {
		return r, true
	}
	switch text {
	case "1", "2", "3", "4":
		return fsrs.Rating(text[0] - '0'), true
	}
	return 0, false
}

// formatInterval renders a preview interval, given in days, at a human scale.
func formatInterval(days float64) string {
	d := time.Duration(days * 24 * float64(time.Hour))
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Round(time.Minute).Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Round(time.Hour).Hours()))
	default:
		return fmt.Sprintf("%dd", int(days+0.5))
	}
}
