package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"armory/internal/cli"
	"armory/internal/progression"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 2)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptSecret hides input when stdin is a terminal and falls back to a
// plain line read for pipes.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderProfile(p progression.Profile) {
	active := "none"
	if p.ActiveItemID != 0 {
		active = fmt.Sprintf("%s (#%d)", p.ActiveItemName, p.ActiveItemID)
	}
	rows := []string{
		titleStyle.Render(fmt.Sprintf("%s  #%d", p.Account.Username, p.Account.ID)),
		"",
		labelStyle.Render("Currency") + comma(p.Account.Currency),
		labelStyle.Render("Bonus currency") + comma(p.Account.BonusCurrency),
		labelStyle.Render("Free XP") + comma(p.Account.FreeXP),
		labelStyle.Render("Skill rating") + strconv.FormatInt(p.Account.SkillRating, 10),
		labelStyle.Render("Active") + active,
	}
	fmt.Println(panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	renderOwned(p.Owned)
}

func renderOwned(items []progression.Ownership) {
	fmt.Println()
	accent.Println("Owned")
	if len(items) == 0 {
		printInfo("Nothing owned yet.")
		return
	}
	fmt.Printf("%-8s %-22s %-28s %10s %-6s\n", "ITEM", "CODE", "NAME", "XP", "ACTIVE")
	for _, o := range items {
		mark := ""
		if o.Active {
			mark = success.Sprint("*")
		}
		fmt.Printf("%-8d %-22s %-28s %10s %-6s\n", o.ItemID, truncate(o.ItemCode, 22), truncate(o.ItemName, 28), comma(o.XP), mark)
	}
}

func renderCatalog(c cli.Catalog) {
	accent.Println("\n== CATALOG ==")
	if len(c.Items) == 0 {
		printInfo("Catalog is empty. Run armory-seed first.")
		return
	}
	codes := make(map[int64]string, len(c.Items))
	fmt.Printf("%-6s %-22s %-26s %-12s %-10s %5s %10s\n", "ID", "CODE", "NAME", "FACTION", "CLASS", "LVL", "COST")
	for _, it := range c.Items {
		codes[it.ID] = it.Code
		fmt.Printf("%-6d %-22s %-26s %-12s %-10s %5d %10s\n",
			it.ID,
			truncate(it.Code, 22),
			truncate(it.Name, 26),
			truncate(it.Faction, 12),
			it.Class,
			it.Level,
			comma(it.PurchaseCost),
		)
	}
	if len(c.Research) == 0 {
		return
	}
	fmt.Println()
	accent.Println("Research")
	for _, e := range c.Research {
		fmt.Printf("  %s -> %s  %s xp\n", codes[e.PredecessorID], codes[e.SuccessorID], comma(e.RequiredXP))
	}
	fmt.Println()
}

func renderUnlocks(unlocks []progression.Unlock) {
	accent.Println("\n== UNLOCKS ==")
	if len(unlocks) == 0 {
		printInfo("No unlocks yet.")
		return
	}
	for _, u := range unlocks {
		fmt.Printf("%-8d %-22s %s\n", u.ItemID, u.ItemCode, u.UnlockedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

func renderLedger(entries []progression.LedgerEntry) {
	accent.Println("\n== LEDGER ==")
	if len(entries) == 0 {
		printInfo("No ledger entries yet.")
		return
	}
	fmt.Printf("%-17s %-20s %12s %10s %8s %8s %10s\n", "WHEN", "REASON", "CURRENCY", "FREE XP", "RATING", "ITEM", "ITEM XP")
	for _, e := range entries {
		item := ""
		if e.ItemID != 0 {
			item = strconv.FormatInt(e.ItemID, 10)
		}
		fmt.Printf("%-17s %-20s %12s %10s %8s %8s %10s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.Reason,
			colorizeDelta(e.CurrencyDelta),
			colorizeDelta(e.FreeXPDelta),
			colorizeDelta(e.RatingDelta),
			item,
			colorizeDelta(e.ItemXPDelta),
		)
	}
	fmt.Println()
}

func renderReward(res progression.ReportResult) {
	r := res.Reward
	accent.Printf("\n== MATCH %d: %s ==\n", res.MatchID, strings.ToUpper(string(r.Result)))
	fmt.Printf("Kills / damage:  %d / %d\n", r.Kills, r.Damage)
	fmt.Printf("Item XP:         %s\n", colorizeDelta(r.XP))
	fmt.Printf("Currency:        %s\n", colorizeDelta(r.Currency))
	fmt.Printf("Free XP:         %s\n", colorizeDelta(r.FreeXP))
	fmt.Printf("Skill rating:    %s\n\n", colorizeDelta(r.MMRDelta))
}

func renderParticipants(matchID int64, parts []progression.Participant) {
	accent.Printf("\n== MATCH %d PARTICIPANTS ==\n", matchID)
	if len(parts) == 0 {
		printInfo("No reports yet.")
		return
	}
	fmt.Printf("%-10s %-22s %5s %-6s %6s %8s %8s %8s\n", "ACCOUNT", "ITEM", "TEAM", "RESULT", "KILLS", "DAMAGE", "XP", "MMR")
	for _, p := range parts {
		fmt.Printf("%-10d %-22s %5d %-6s %6d %8d %8d %8s\n",
			p.AccountID,
			truncate(p.ItemCode, 22),
			p.Team,
			p.Result,
			p.Kills,
			p.Damage,
			p.XPEarned,
			colorizeDelta(p.MMRDelta),
		)
	}
	fmt.Println()
}

func colorizeDelta(v int64) string {
	switch {
	case v > 0:
		return success.Sprint("+" + comma(v))
	case v < 0:
		return danger.Sprint("-" + comma(-v))
	default:
		return neutral.Sprint("0")
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
