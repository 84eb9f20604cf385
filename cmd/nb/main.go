// Nostrboard CLI - statistics and session management from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quantumlife/nostrboard/internal/app"
	"github.com/quantumlife/nostrboard/internal/config"
	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/logging"
	"github.com/quantumlife/nostrboard/internal/stats"
)

var (
	// Config
	configPath string
	jsonOutput bool

	// Version
	version = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nb",
		Short: "Nostrboard - Nostr activity statistics",
		Long: `Nostrboard queries your relays and summarizes activity:
posts, reactions and reposts per user, relay-wide kind and author
rankings, and a backup of your follow list.

Keys may be given as 64-character hex or npub1... strings.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Keep log lines off stdout so output stays pipeable.
			logging.SetOutput(os.Stderr)
			logging.SetLevel(logging.WARN)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.nostrboard/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	// Commands
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(relayStatsCmd())
	rootCmd.AddCommand(exploreCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(relaysCmd())
	rootCmd.AddCommand(themeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp loads config and opens the app.
func openApp() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.Open(cfg, app.Options{})
}

// withApp runs fn against an opened app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

// resolveKey returns the given key, or the current account when empty.
func resolveKey(a *app.App, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	sess, err := a.Sessions.Current()
	if err != nil {
		return "", err
	}
	if !sess.LoggedIn {
		return "", fmt.Errorf("%w: pass a key or run 'nb accounts login <key>'", core.ErrNotLoggedIn)
	}
	return sess.Current.PubKey, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// termWidth returns the terminal width, or 80 when stdout is not a terminal.
func termWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w < 40 {
		return 80
	}
	return w
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func formatTime(ts *int64) string {
	if ts == nil {
		return "never"
	}
	return time.Unix(*ts, 0).Local().Format("2006-01-02 15:04")
}

// printDays draws a horizontal bar per day, scaled to the terminal.
func printDays(days []stats.DayCount) {
	peak := 0
	for _, d := range days {
		if d.Count > peak {
			peak = d.Count
		}
	}
	barWidth := termWidth() - 20
	for _, d := range days {
		n := 0
		if peak > 0 {
			n = d.Count * barWidth / peak
		}
		fmt.Printf("   %-7s %5d %s\n", d.Label, d.Count, strings.Repeat("█", n))
	}
}

// initCmd writes a default config file
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("⚠️  Config already exists: %s\n", path)
				return nil
			}

			if err := config.Default().Save(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("✅ Wrote %s\n", path)
			fmt.Println("\nNext: 'nb accounts login <npub>' then 'nb user'.")
			return nil
		},
	}
}

// versionCmd shows version
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show Nostrboard version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Nostrboard %s\n", version)
		},
	}
}

// userCmd prints a user's statistics
func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user [pubkey|npub]",
		Short: "Show posts, reactions and reposts for a user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			full, _ := cmd.Flags().GetBool("activity")

			return withApp(func(ctx context.Context, a *app.App) error {
				key, err := resolveKey(a, args)
				if err != nil {
					return err
				}

				us, err := a.Dashboard.UserStats(ctx, key)
				if err != nil {
					return err
				}

				if !full {
					if jsonOutput {
						return printJSON(us)
					}
					printUserStats(us.PubKey, us.TotalPosts, us.TotalReactions, us.TotalReposts, us.PostsThisWeek, us.PostsThisMonth, us.LastActivity)
					fmt.Println()
					printDays(us.DailyActivity)
					return nil
				}

				activity, err := a.Dashboard.ActivityStats(ctx, key)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(map[string]interface{}{"user": us, "activity": activity.Stats})
				}
				printUserStats(us.PubKey, us.TotalPosts, us.TotalReactions, us.TotalReposts, us.PostsThisWeek, us.PostsThisMonth, us.LastActivity)
				printStatistics(activity.Stats)
				return nil
			})
		},
	}
	cmd.Flags().Bool("activity", false, "include statistics over every kind the user authored")
	return cmd
}

func printUserStats(pk string, posts, reactions, reposts, week, month int, last *int64) {
	npub, _ := core.EncodeNpub(pk)
	fmt.Printf("📊 %s\n\n", npub)
	fmt.Printf("   Posts:      %d (%d this week, %d this month)\n", posts, week, month)
	fmt.Printf("   Reactions:  %d received\n", reactions)
	fmt.Printf("   Reposts:    %d received\n", reposts)
	fmt.Printf("   Last post:  %s\n", formatTime(last))
}

func printStatistics(st stats.Statistics) {
	fmt.Println()
	fmt.Printf("   Events: %d across %d active days, %d authors\n", st.TotalCount, st.ActiveDays, st.UniqueAuthors)

	if len(st.TopKinds) > 0 {
		fmt.Println("\n   Top kinds")
		for _, k := range st.TopKinds {
			fmt.Printf("   %6d  %s\n", k.Count, core.KindLabel(k.Key))
		}
	}
	if len(st.TopAuthors) > 0 {
		fmt.Println("\n   Top authors")
		for _, a := range st.TopAuthors {
			fmt.Printf("   %6d  %s\n", a.Count, core.ShortKey(a.Key))
		}
	}
	if len(st.MostRecent) > 0 {
		width := termWidth() - 24
		fmt.Println("\n   Most recent")
		for _, e := range st.MostRecent {
			fmt.Printf("   %s  %s\n", time.Unix(e.CreatedAt, 0).Local().Format("01-02 15:04"), truncate(displayContent(e), width))
		}
	}
	if len(st.CountsByDay) > 0 {
		fmt.Println()
		printDays(st.CountsByDay)
	}
}

func displayContent(e core.Event) string {
	if e.Content != "" {
		return e.Content
	}
	return "[" + core.KindLabel(e.Kind) + "]"
}

// searchCmd searches a user's events
func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <pubkey|npub> [query]",
		Short: "Search a user's recent events by content",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			query := ""
			if len(args) > 1 {
				query = args[1]
			}

			return withApp(func(ctx context.Context, a *app.App) error {
				result, err := a.Dashboard.ExploreEvents(ctx, args[0], query, page)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(result)
				}

				width := termWidth() - 24
				fmt.Printf("🔎 %d matches (page %d of %d)\n\n", result.TotalEvents, result.Page, result.TotalPages)
				for _, e := range result.Events {
					fmt.Printf("   %s  %s\n", time.Unix(e.CreatedAt, 0).Local().Format("01-02 15:04"), truncate(displayContent(e), width))
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("page", 1, "result page")
	return cmd
}

// relayStatsCmd prints relay-wide statistics
func relayStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay-stats",
		Short: "Show activity across your relays for the last week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				rs, err := a.Dashboard.RelayStats(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(rs)
				}

				fmt.Printf("📡 Relays: %s\n", strings.Join(a.Pool.Relays(), ", "))
				fmt.Printf("   Last %d days: %.1f events/day\n", rs.WindowDays, rs.EventsPerDay)
				printStatistics(rs.Stats)
				return nil
			})
		},
	}
}

// exploreCmd prints the latest notes and profiles
func exploreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Show the latest notes and profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				feed, err := a.Dashboard.Explore(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(feed)
				}

				width := termWidth() - 24
				fmt.Printf("🧭 %d notes, %d profiles\n\n", len(feed.Notes), len(feed.Profiles))
				for _, p := range feed.Profiles {
					fmt.Printf("   👤 %-20s %s\n", truncate(p.Name, 20), truncate(p.About, width))
				}
				if len(feed.Profiles) > 0 {
					fmt.Println()
				}
				for _, e := range feed.Notes {
					fmt.Printf("   %s  %s\n", core.ShortKey(e.PubKey), truncate(e.Content, width))
				}
				return nil
			})
		},
	}
}

// exportCmd backs up a user's follow list
func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [pubkey|npub]",
		Short: "Export a follow list as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")

			return withApp(func(ctx context.Context, a *app.App) error {
				key, err := resolveKey(a, args)
				if err != nil {
					return err
				}
				export, err := a.Dashboard.FollowingExport(ctx, key)
				if err != nil {
					return err
				}

				if out == "" || out == "-" {
					return printJSON(export)
				}
				data, err := json.MarshalIndent(export, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "✅ Exported %d follows to %s\n", export.Stats.TotalFollowing, out)
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	return cmd
}

// accountsCmd manages logged-in accounts
func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List and switch accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				sess, err := a.Sessions.Current()
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(sess)
				}
				if !sess.LoggedIn {
					fmt.Println("No accounts. Run 'nb accounts login <npub>'.")
					return nil
				}
				printAccount(sess.Current)
				for _, acct := range sess.Others {
					printAccount(acct)
				}
				return nil
			})
		},
	}

	loginCmd := &cobra.Command{
		Use:   "login <pubkey|npub>",
		Short: "Add an account and make it current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			return withApp(func(ctx context.Context, a *app.App) error {
				sess, err := a.Sessions.Login(args[0], name)
				if err != nil {
					return err
				}
				fmt.Printf("✅ Logged in as %s\n", sess.Current.Npub)
				return nil
			})
		},
	}
	loginCmd.Flags().String("name", "", "display name")

	switchCmd := &cobra.Command{
		Use:   "switch <pubkey|npub>",
		Short: "Make another logged-in account current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				sess, err := a.Sessions.Switch(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("✅ Switched to %s\n", sess.Current.Npub)
				return nil
			})
		},
	}

	logoutCmd := &cobra.Command{
		Use:   "logout <pubkey|npub>",
		Short: "Remove an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				sess, err := a.Sessions.Logout(args[0])
				if err != nil {
					return err
				}
				if sess.LoggedIn {
					fmt.Printf("✅ Logged out. Current account: %s\n", sess.Current.Npub)
				} else {
					fmt.Println("✅ Logged out. No accounts left.")
				}
				return nil
			})
		},
	}

	cmd.AddCommand(loginCmd, switchCmd, logoutCmd)
	return cmd
}

func printAccount(acct *core.Account) {
	marker := "○"
	if acct.IsCurrent {
		marker = "●"
	}
	name := acct.DisplayName
	if name == "" {
		name = core.GenUserName(acct.PubKey)
	}
	fmt.Printf("   %s %-20s %s\n", marker, name, acct.Npub)
}

// relaysCmd manages the relay list
func relaysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relays",
		Short: "List, add and remove relays",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				sess, err := a.Sessions.Current()
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(sess.Relays)
				}
				fmt.Println("📡 Relays")
				fmt.Println()
				for _, r := range sess.Relays {
					fmt.Printf("   %-40s %s\n", r.URL, relayMode(r))
				}
				return nil
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a relay or change its flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			readOnly, _ := cmd.Flags().GetBool("read-only")
			writeOnly, _ := cmd.Flags().GetBool("write-only")
			if readOnly && writeOnly {
				return fmt.Errorf("%w: --read-only and --write-only are exclusive", core.ErrInvalidInput)
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				if _, err := a.Sessions.AddRelay(args[0], !writeOnly, !readOnly); err != nil {
					return err
				}
				fmt.Printf("✅ Added %s\n", args[0])
				return nil
			})
		},
	}
	addCmd.Flags().Bool("read-only", false, "only read from this relay")
	addCmd.Flags().Bool("write-only", false, "only write to this relay")

	removeCmd := &cobra.Command{
		Use:   "remove <url>",
		Short: "Remove a relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if _, err := a.Sessions.RemoveRelay(args[0]); err != nil {
					return err
				}
				fmt.Printf("✅ Removed %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(addCmd, removeCmd)
	return cmd
}

func relayMode(r *core.RelaySetting) string {
	switch {
	case r.Read && r.Write:
		return "read/write"
	case r.Read:
		return "read"
	case r.Write:
		return "write"
	default:
		return "off"
	}
}

// themeCmd shows or sets the theme
func themeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "theme [light|dark|system]",
		Short: "Show or set the dashboard theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if len(args) == 0 {
					cur, err := a.Sessions.Current()
					if err != nil {
						return err
					}
					fmt.Println(cur.Theme)
					return nil
				}
				updated, err := a.Sessions.SetTheme(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("✅ Theme set to %s\n", updated.Theme)
				return nil
			})
		},
	}
}
