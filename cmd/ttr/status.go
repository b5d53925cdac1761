package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/drew-myers/ticket-to-ride/internal/auth"
	"github.com/drew-myers/ticket-to-ride/internal/config"
	"github.com/drew-myers/ticket-to-ride/internal/github"
	"github.com/drew-myers/ticket-to-ride/internal/sync"
	"github.com/drew-myers/ticket-to-ride/internal/ticket"
)

var statusQuick bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show each ticket's sync state",
	Long: `Status compares every ticket against its GitHub issue and reports
whether it is unsynced, in sync, locally modified, or conflicted. With
--quick only the local external-ref is consulted and no network calls are
made.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusQuick, "quick", false, "skip the remote fetch, report local state only")
	rootCmd.AddCommand(statusCmd)
}

var stateLabels = map[sync.TicketState]string{
	sync.StateUnsynced: "unsynced",
	sync.StateInSync:   "ok",
	sync.StateModified: "modified",
	sync.StateConflict: "conflict",
	sync.StateMissing:  "missing",
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, ticketsDir, err := config.Load()
	if err != nil {
		return err
	}
	tickets, err := ticket.LoadAll(ticketsDir)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		fmt.Println("No tickets found.")
		return nil
	}

	if statusQuick {
		synced := 0
		for _, t := range tickets {
			ref := t.ExternalRef
			if ref == "" {
				ref = "-"
			} else {
				synced++
			}
			fmt.Printf("%-12s %-10s %s\n", t.ID, ref, t.Title)
		}
		fmt.Printf("\n%d ticket(s), %d synced\n", len(tickets), synced)
		return nil
	}

	token, err := auth.Token()
	if err != nil {
		return err
	}
	client := github.NewClient(token)
	engine, err := sync.NewEngine(cmd.Context(), client, cfg, io.Discard, slog.Default())
	if err != nil {
		return err
	}

	remote := engine.PrefetchFor(cmd.Context(), tickets, tickets)
	depIndex := sync.DependencyIndex(tickets)

	counts := make(map[sync.TicketState]int)
	for _, t := range tickets {
		state := engine.ClassifyTicket(t, remote, depIndex)
		counts[state]++
		fmt.Printf("%-10s %-12s %s\n", stateLabels[state], t.ID, t.Title)
	}

	fmt.Printf("\n%d ticket(s): %d unsynced, %d ok, %d modified, %d conflict, %d missing\n",
		len(tickets),
		counts[sync.StateUnsynced], counts[sync.StateInSync],
		counts[sync.StateModified], counts[sync.StateConflict], counts[sync.StateMissing])
	return nil
}
