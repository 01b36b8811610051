package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"polyagent/internal/agent"
)

var (
	configPath string
	agentFlag  string
	limitFlag  int
)

var rootCmd = &cobra.Command{
	Use:           "polyagent",
	Short:         "polyagent - multi-agent assistant over a chat LLM",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Answer a single query and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "), os.Stdin, cmd.OutOrStdout())
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the default agent on the console",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cmd.Context(), AppOptions{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer app.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "polyagent chat (Ctrl-D to quit)")
		return app.Chat(cmd.Context(), os.Stdin, cmd.OutOrStdout())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured Telegram and HTTP channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cmd.Context(), AppOptions{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer app.Close()
		return app.Serve(cmd.Context())
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs, or the events of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cmd.Context(), AppOptions{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer app.Close()
		if len(args) == 1 {
			return printEvents(cmd.Context(), app, args[0], cmd.OutOrStdout())
		}
		return printHistory(cmd.Context(), app, limitFlag, cmd.OutOrStdout())
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools and agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cmd.Context(), AppOptions{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer app.Close()
		printTools(app, cmd.OutOrStdout())
		return nil
	},
}

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List installed skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cmd.Context(), AppOptions{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer app.Close()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVERSION\tENABLED\tDESCRIPTION")
		for _, s := range app.Skills() {
			desc := s.Description
			if s.Err != "" {
				desc = "error: " + s.Err
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", s.Name, s.Version, s.Enabled, desc)
		}
		return w.Flush()
	},
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage secrets in the OS keyring or encrypted vault",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <name> [value]",
	Short: "Store a secret; the value is prompted for when omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := ""
		if len(args) == 2 {
			value = args[1]
		} else {
			v, err := readSecret(cmd.OutOrStdout(), args[0])
			if err != nil {
				return err
			}
			value = v
		}
		if value == "" {
			return fmt.Errorf("empty value for %s", args[0])
		}
		app, err := NewApp(cmd.Context(), AppOptions{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.SetSecret(args[0], value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", args[0])
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cmd.Context(), AppOptions{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer app.Close()
		return app.DeleteSecret(args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.polyagent/config.json)")
	askCmd.Flags().StringVarP(&agentFlag, "agent", "a", "", "agent to run (default from config)")
	historyCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "number of runs to show")
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(askCmd, chatCmd, serveCmd, historyCmd, toolsCmd, skillsCmd, secretCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runAsk(ctx context.Context, query string, in io.Reader, out io.Writer) error {
	app, err := NewApp(ctx, AppOptions{
		ConfigPath: configPath,
		Clarifier:  promptClarifier(in, out),
	})
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Ask(ctx, agentFlag, query)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Answer)
	if res.Failed {
		return fmt.Errorf("run %s failed", res.RunID)
	}
	return nil
}

// promptClarifier asks on out and reads one line from in.
func promptClarifier(in io.Reader, out io.Writer) agent.Clarifier {
	reader := bufio.NewReader(in)
	return agent.ClarifierFunc(func(ctx context.Context, question string) (string, error) {
		fmt.Fprintf(out, "%s\n> ", question)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read answer: %w", err)
		}
		return strings.TrimSpace(line), nil
	})
}

func readSecret(out io.Writer, name string) (string, error) {
	fmt.Fprintf(out, "%s: ", name)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		return strings.TrimSpace(string(b)), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printHistory(ctx context.Context, app *App, limit int, out io.Writer) error {
	runs, err := app.History(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tWHEN\tCHANNEL\tAGENT\tELAPSED\tSTATUS\tQUERY")
	for _, r := range runs {
		status := "ok"
		if r.Failed {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Channel, r.Agent,
			r.Elapsed.Round(time.Millisecond), status, oneLine(r.Query, 60))
	}
	return w.Flush()
}

func printEvents(ctx context.Context, app *App, runID string, out io.Writer) error {
	events, err := app.RunEvents(ctx, runID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events recorded for run %s", runID)
	}
	for _, ev := range events {
		fmt.Fprintf(out, "%s  %-16s %s\n", ev.CreatedAt.Local().Format("15:04:05.000"), ev.Topic, ev.Payload)
	}
	return nil
}

func printTools(app *App, out io.Writer) {
	fmt.Fprintln(out, "Agents:")
	for _, name := range app.Agents() {
		fmt.Fprintf(out, "  %s\n", name)
	}
	fmt.Fprintln(out, "Tools:")
	for _, d := range app.Tools() {
		params := make([]string, 0, len(d.Parameters))
		for _, p := range d.Parameters {
			params = append(params, p.Name)
		}
		fmt.Fprintf(out, "  %s(%s): %s\n", d.Name, strings.Join(params, ", "), d.Description)
	}
}

func oneLine(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
