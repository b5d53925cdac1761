package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drew-myers/ticket-to-ride/internal/auth"
	"github.com/drew-myers/ticket-to-ride/internal/config"
	"github.com/drew-myers/ticket-to-ride/internal/github"
	"github.com/drew-myers/ticket-to-ride/internal/sync"
	"github.com/drew-myers/ticket-to-ride/internal/ticket"
)

var pushCmd = &cobra.Command{
	Use:   "push [ticket-id...]",
	Short: "Push tickets to GitHub",
	Long: `Push creates or updates a GitHub issue for each ticket. With no
arguments every ticket is pushed; arguments select tickets by exact ID or
ID substring.`,
	RunE: runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg, ticketsDir, err := config.Load()
	if err != nil {
		return err
	}
	token, err := auth.Token()
	if err != nil {
		return err
	}

	all, err := ticket.LoadAll(ticketsDir)
	if err != nil {
		return err
	}
	toSync, err := selectTickets(all, args)
	if err != nil {
		return err
	}
	if len(toSync) == 0 {
		fmt.Println("No tickets to push.")
		return nil
	}

	client := github.NewClient(token)
	engine, err := sync.NewEngine(cmd.Context(), client, cfg, os.Stdout, slog.Default())
	if err != nil {
		return err
	}

	summary, err := engine.Sync(cmd.Context(), toSync, all)
	if err != nil {
		return err
	}

	fmt.Printf("\n%d created, %d updated, %d skipped, %d failed\n",
		summary.Created, summary.Updated, summary.Skipped, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d ticket(s) failed to sync", summary.Failed)
	}
	return nil
}

// selectTickets filters by the given IDs. An exact ID match wins; otherwise
// substring matches are included. An argument matching nothing is an error.
func selectTickets(all []*ticket.Ticket, args []string) ([]*ticket.Ticket, error) {
	if len(args) == 0 {
		return all, nil
	}

	seen := make(map[string]bool)
	var selected []*ticket.Ticket
	add := func(t *ticket.Ticket) {
		if !seen[t.ID] {
			seen[t.ID] = true
			selected = append(selected, t)
		}
	}

	for _, arg := range args {
		matched := false
		for _, t := range all {
			if t.ID == arg {
				add(t)
				matched = true
			}
		}
		if matched {
			continue
		}
		for _, t := range all {
			if strings.Contains(t.ID, arg) {
				add(t)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("no ticket matches %q", arg)
		}
	}
	return selected, nil
}
