package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "armory/internal/cli"
	"armory/internal/config"
	"armory/internal/syncq"

	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

func main() {
	_ = config.LoadDotEnv()
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "armory",
		Short:        "Armory progression client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newCatalogCmd(&apiBase),
		newProfileCmd(&apiBase),
		newItemsCmd(&apiBase),
		newUnlocksCmd(&apiBase),
		newLedgerCmd(&apiBase),
		newActivateCmd(&apiBase),
		newBuyCmd(&apiBase),
		newSellCmd(&apiBase),
		newRemoveCmd(&apiBase),
		newResearchCmd(&apiBase),
		newConvertCmd(&apiBase),
		newMatchCmd(&apiBase),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// authed runs fn with a loaded session, a client and a bounded context.
func authed(cmd *cobra.Command, apiBase *string, fn func(ctx context.Context, client *cl.Client, token string) error) error {
	sess, err := cl.LoadSession()
	if err != nil {
		return fmt.Errorf("login required: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	err = fn(ctx, newClient(apiBase), sess.AccessToken)
	var apiErr *cl.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 401 {
		printWarn("Session rejected. Run `armory login` again.")
	}
	return err
}

func newLoginCmd(apiBase *string) *cobra.Command {
	var token, username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token and open the account session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if strings.TrimSpace(token) == "" {
				token, err = promptSecret("Access token")
				if err != nil {
					return err
				}
			}
			if strings.TrimSpace(username) == "" {
				username, err = promptOptional("Username (optional)")
				if err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			profile, err := newClient(apiBase).Session(ctx, strings.TrimSpace(token), username)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken: strings.TrimSpace(token),
				AccountID:   profile.Account.ID,
				Username:    profile.Account.Username,
			}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Logged in as %s. Session saved.", profile.Account.Username))
			renderProfile(profile)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "access token (prompted when empty)")
	cmd.Flags().StringVar(&username, "username", "", "display name for a new account")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newCatalogCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List purchasable items and research edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				c, err := client.Catalog(ctx, token)
				if err != nil {
					return err
				}
				renderCatalog(c)
				return nil
			})
		},
	}
}

func newProfileCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show balances and owned items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				p, err := client.Profile(ctx, token)
				if err != nil {
					return err
				}
				renderProfile(p)
				return nil
			})
		},
	}
}

func newItemsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List owned items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				snap, err := client.Owned(ctx, token)
				if err != nil {
					return err
				}
				renderOwned(snap.Items)
				fmt.Printf("\nFree XP: %s\n\n", comma(snap.FreeXP))
				return nil
			})
		},
	}
}

func newUnlocksCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unlocks",
		Short: "List researched items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				unlocks, err := client.Unlocks(ctx, token)
				if err != nil {
					return err
				}
				renderUnlocks(unlocks)
				return nil
			})
		},
	}
}

func newLedgerCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show recent balance changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				entries, err := client.Ledger(ctx, token, limit)
				if err != nil {
					return err
				}
				renderLedger(entries)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (server default when 0)")
	return cmd
}

func newActivateCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "activate [itemID]",
		Short: "Make an owned item the active one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := int64FromArgOrPrompt(args, 0, "Item ID")
			if err != nil {
				return err
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				active, err := client.SetActive(ctx, token, itemID)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Item %d is now active.", active))
				return nil
			})
		},
	}
}

func newBuyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy [code]",
		Short: "Buy an item by catalog code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := stringFromArgOrPrompt(args, 0, "Item code")
			if err != nil {
				return err
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				out, err := client.Buy(ctx, token, code)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Bought %s (item %d). Currency left: %s", code, out.ItemID, comma(out.Currency)))
				return nil
			})
		},
	}
}

func newSellCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sell [itemID]",
		Short: "Sell an owned item for half its price",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := int64FromArgOrPrompt(args, 0, "Item ID")
			if err != nil {
				return err
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				out, err := client.Sell(ctx, token, itemID)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Sold item %d for %s. Currency: %s", out.ItemID, comma(out.Refund), comma(out.Currency)))
				if out.WasActive {
					printInfo(fmt.Sprintf("Active item is now %d.", out.NewActiveItemID))
				}
				return nil
			})
		},
	}
}

func newRemoveCmd(apiBase *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove [itemID]",
		Short: "Discard an owned item without refund",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := int64FromArgOrPrompt(args, 0, "Item ID")
			if err != nil {
				return err
			}
			if !yes {
				answer, err := promptOptional(fmt.Sprintf("Remove item %d with no refund? (y/N)", itemID))
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					printInfo("Cancelled.")
					return nil
				}
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				out, err := client.Remove(ctx, token, itemID)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Removed item %d.", out.ItemID))
				if out.WasActive {
					printInfo(fmt.Sprintf("Active item is now %d.", out.NewActiveItemID))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func newResearchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "research [successorID] [predecessorID]",
		Short: "Unlock an item by spending XP on its predecessor",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			successorID, err := int64FromArgOrPrompt(args, 0, "Successor item ID")
			if err != nil {
				return err
			}
			predecessorID, err := int64FromArgOrPrompt(args, 1, "Predecessor item ID")
			if err != nil {
				return err
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				out, err := client.Research(ctx, token, successorID, predecessorID)
				if err != nil {
					return err
				}
				if out.AlreadyUnlocked {
					printInfo(fmt.Sprintf("Item %d was already unlocked.", out.ItemID))
					return nil
				}
				printSuccess(fmt.Sprintf("Unlocked item %d for %s XP. Item %d has %s XP left.",
					out.ItemID, comma(out.XPSpent), out.PredecessorID, comma(out.PredecessorNewXP)))
				return nil
			})
		},
	}
}

func newConvertCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "convert [itemID] [amount]",
		Short: "Move free XP onto an owned item",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := int64FromArgOrPrompt(args, 0, "Item ID")
			if err != nil {
				return err
			}
			amount, err := int64FromArgOrPrompt(args, 1, "Amount")
			if err != nil {
				return err
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				out, err := client.ConvertFreeXP(ctx, token, itemID, amount)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Item %d now has %s XP. Free XP left: %s",
					out.ItemID, comma(out.ItemXP), comma(out.RemainingFreeXP)))
				return nil
			})
		},
	}
}

func newMatchCmd(apiBase *string) *cobra.Command {
	match := &cobra.Command{
		Use:   "match",
		Short: "Start, report and close matches",
	}

	match.AddCommand(&cobra.Command{
		Use:   "start [map]",
		Short: "Open a new match",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapName := ""
			if len(args) > 0 {
				mapName = strings.TrimSpace(args[0])
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				m, err := client.StartMatch(ctx, token, mapName)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Match %d started on %s.", m.ID, m.Map))
				return nil
			})
		},
	})

	var (
		itemCode string
		team     int
		result   string
		kills    int
		damage   int
	)
	report := &cobra.Command{
		Use:   "report <matchID>",
		Short: "Submit your battle result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID, err := int64FromArgOrPrompt(args, 0, "Match ID")
			if err != nil {
				return err
			}
			if strings.TrimSpace(itemCode) == "" {
				itemCode, err = promptRequired("Item code")
				if err != nil {
					return err
				}
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				out, err := client.Report(ctx, token, matchID, itemCode, team, result, kills, damage)
				if err != nil {
					return queueOnNetworkError(err, syncq.Report{
						MatchID:  matchID,
						ItemCode: itemCode,
						Team:     team,
						Result:   result,
						Kills:    kills,
						Damage:   damage,
					})
				}
				renderReward(out)
				return nil
			})
		},
	}
	report.Flags().StringVar(&itemCode, "item", "", "code of the item you played")
	report.Flags().IntVar(&team, "team", 0, "team index")
	report.Flags().StringVar(&result, "result", "lose", "win, draw or lose")
	report.Flags().IntVar(&kills, "kills", 0, "kills this battle")
	report.Flags().IntVar(&damage, "damage", 0, "damage dealt this battle")
	match.AddCommand(report)

	match.AddCommand(&cobra.Command{
		Use:   "end <matchID>",
		Short: "Close a match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID, err := int64FromArgOrPrompt(args, 0, "Match ID")
			if err != nil {
				return err
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				m, err := client.EndMatch(ctx, token, matchID)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Match %d closed.", m.ID))
				return nil
			})
		},
	})

	match.AddCommand(&cobra.Command{
		Use:   "participants <matchID>",
		Short: "List reports recorded for a match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID, err := int64FromArgOrPrompt(args, 0, "Match ID")
			if err != nil {
				return err
			}
			return authed(cmd, apiBase, func(ctx context.Context, client *cl.Client, token string) error {
				parts, err := client.Participants(ctx, token, matchID)
				if err != nil {
					return err
				}
				renderParticipants(matchID, parts)
				return nil
			})
		},
	})
	return match
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay match reports queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := openQueue()
			if err != nil {
				return err
			}
			pending, err := queue.Load()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*requestTimeout)
			defer cancel()

			remaining := make([]syncq.Report, 0, len(pending))
			replayed, dropped := 0, 0
			for _, q := range pending {
				out, err := client.Report(ctx, sess.AccessToken, q.MatchID, q.ItemCode, q.Team, q.Result, q.Kills, q.Damage)
				var apiErr *cl.APIError
				switch {
				case err == nil:
					replayed++
					renderReward(out)
				case errors.As(err, &apiErr) && apiErr.Status != 401:
					// Rejections are final.
					dropped++
					printWarn(fmt.Sprintf("Match %d report rejected: %s", q.MatchID, apiErr.Message))
				default:
					remaining = append(remaining, q)
					printWarn(fmt.Sprintf("Match %d report still pending: %v", q.MatchID, err))
				}
			}
			if err := queue.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d dropped=%d remaining=%d", replayed, dropped, len(remaining)))
			return nil
		},
	}
}

func openQueue() (*syncq.Queue, error) {
	dir, err := cl.StateDir()
	if err != nil {
		return nil, err
	}
	return syncq.Open(dir)
}

// queueOnNetworkError keeps a report for `armory sync` when the API could not
// be reached. Structured API rejections are returned as is.
func queueOnNetworkError(err error, r syncq.Report) error {
	var apiErr *cl.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	queue, qerr := openQueue()
	if qerr != nil {
		return fmt.Errorf("request failed (%v) and queue unavailable: %w", err, qerr)
	}
	added, qerr := queue.Push(r)
	if qerr != nil {
		return fmt.Errorf("request failed (%v) and queue write failed: %w", err, qerr)
	}
	if added {
		printWarn(fmt.Sprintf("API unreachable; report for match %d queued. Run `armory sync` later.", r.MatchID))
	} else {
		printWarn(fmt.Sprintf("API unreachable; a report for match %d is already queued.", r.MatchID))
	}
	return nil
}

func stringFromArgOrPrompt(args []string, idx int, label string) (string, error) {
	if len(args) > idx {
		if v := strings.TrimSpace(args[idx]); v != "" {
			return v, nil
		}
	}
	return promptRequired(label)
}

func int64FromArgOrPrompt(args []string, idx int, label string) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptInt64(label, 0)
}
