package main

import (
	"testing"

	"github.com/drew-myers/ticket-to-ride/internal/ticket"
)

func ticketsByID(ids ...string) []*ticket.Ticket {
	tickets := make([]*ticket.Ticket, len(ids))
	for i, id := range ids {
		tickets[i] = &ticket.Ticket{ID: id}
	}
	return tickets
}

func TestSelectTicketsNoArgsReturnsAll(t *testing.T) {
	all := ticketsByID("ttr-0001", "ttr-0002")
	selected, err := selectTickets(all, nil)
	if err != nil {
		t.Fatalf("selectTickets() error: %v", err)
	}
	if len(selected) != 2 {
		t.Errorf("got %d tickets, want all 2", len(selected))
	}
}

func TestSelectTicketsExactMatchWins(t *testing.T) {
	// "ttr-0001" is both an exact ID and a substring of "ttr-00010".
	all := ticketsByID("ttr-0001", "ttr-00010")
	selected, err := selectTickets(all, []string{"ttr-0001"})
	if err != nil {
		t.Fatalf("selectTickets() error: %v", err)
	}
	if len(selected) != 1 || selected[0].ID != "ttr-0001" {
		t.Errorf("selected = %v, want only the exact match", ids(selected))
	}
}

func TestSelectTicketsSubstring(t *testing.T) {
	all := ticketsByID("ttr-0001", "ttr-0002", "other-1")
	selected, err := selectTickets(all, []string{"ttr"})
	if err != nil {
		t.Fatalf("selectTickets() error: %v", err)
	}
	if len(selected) != 2 {
		t.Errorf("selected = %v, want the two ttr tickets", ids(selected))
	}
}

func TestSelectTicketsNoMatch(t *testing.T) {
	all := ticketsByID("ttr-0001")
	if _, err := selectTickets(all, []string{"nope"}); err == nil {
		t.Fatal("selectTickets() = nil error, want one for an unmatched argument")
	}
}

func TestSelectTicketsDeduplicates(t *testing.T) {
	all := ticketsByID("ttr-0001", "ttr-0002")
	selected, err := selectTickets(all, []string{"ttr-0001", "ttr"})
	if err != nil {
		t.Fatalf("selectTickets() error: %v", err)
	}
	if len(selected) != 2 {
		t.Errorf("selected = %v, want each ticket once", ids(selected))
	}
}

func ids(tickets []*ticket.Ticket) []string {
	out := make([]string, len(tickets))
	for i, t := range tickets {
		out[i] = t.ID
	}
	return out
}
