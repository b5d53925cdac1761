package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/drew-myers/ticket-to-ride/internal/config"
	"github.com/drew-myers/ticket-to-ride/internal/github"
	"github.com/drew-myers/ticket-to-ride/internal/ticket"
)

// Engine drives one sync run. An Engine is built once per invocation and is
// not safe for concurrent use.
type Engine struct {
	client *github.Client
	cfg    *config.Config
	out    io.Writer
	logger *slog.Logger

	owner string
	repo  string

	repoID     string
	assigneeID string

	labelIDs     map[string]string // lowercased label name -> node ID
	issueTypeIDs map[string]string // lowercased type name -> node ID

	project *github.Project
	fields  *projectFields
}

// Summary counts per-ticket outcomes of a sync run. Conflicts count as
// skipped; best-effort phase failures are not counted at all.
type Summary struct {
	Created int
	Updated int
	Skipped int
	Failed  int
}

// Outcome is a ticket's final disposition.
type Outcome int

const (
	Created Outcome = iota
	Updated
	Skipped
	Failed
)

// Result is the recorded outcome for one ticket, keyed by ticket ID in the
// engine's result map.
type Result struct {
	Outcome Outcome
	Message string        // reason, for Skipped and Failed
	Issue   *github.Issue // remote record, for Created and Updated
}

// NewEngine resolves everything a sync run needs up front: repository and
// assignee node IDs, label and issue-type caches, the configured project,
// and its field schema. Any resolution failure aborts before a single issue
// is touched.
func NewEngine(ctx context.Context, client *github.Client, cfg *config.Config, out io.Writer, logger *slog.Logger) (*Engine, error) {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}

	owner, repo, err := cfg.GitHub.RepoParts()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		client: client,
		cfg:    cfg,
		out:    out,
		logger: logger,
		owner:  owner,
		repo:   repo,
	}

	if e.repoID, err = client.RepositoryID(ctx, owner, repo); err != nil {
		return nil, err
	}

	if cfg.GitHub.Assignee != "" {
		if e.assigneeID, err = client.UserID(ctx, cfg.GitHub.Assignee); err != nil {
			return nil, err
		}
	}

	labels, err := client.ListLabels(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	e.labelIDs = make(map[string]string, len(labels))
	for _, l := range labels {
		e.labelIDs[strings.ToLower(l.Name)] = l.ID
	}

	issueTypes, err := client.IssueTypes(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	if err := validateTypeMappings(cfg.Mapping.Type, issueTypes); err != nil {
		return nil, err
	}
	e.issueTypeIDs = make(map[string]string, len(issueTypes))
	for _, it := range issueTypes {
		e.issueTypeIDs[strings.ToLower(it.Name)] = it.ID
	}

	if cfg.GitHub.Project != "" {
		if e.project, err = client.FindProject(ctx, owner, repo, cfg.GitHub.Project); err != nil {
			return nil, err
		}
		if len(cfg.Project.Status) > 0 || cfg.Project.Iteration != "" {
			schema, err := client.GetProjectFields(ctx, e.project.ID)
			if err != nil {
				return nil, err
			}
			if e.fields, err = resolveProjectFields(schema, cfg.Project, logger, time.Now()); err != nil {
				return nil, err
			}
		}
	}

	return e, nil
}

// action is a ticket's classification for this run.
type action int

const (
	actCreate action = iota
	actUpdate
	actSkip
	actConflict
	actError
)

// plan is one ticket's classification plus everything the mutation phases
// need to act on it.
type plan struct {
	ticket *ticket.Ticket
	action action
	reason string
	remote *github.Issue

	wantTitle    string
	wantBody     string
	titleChanged bool
	bodyChanged  bool
	needsClose   bool
	needsReopen  bool
}

// Sync reconciles toSync against GitHub. all supplies the dependency and
// parent context so cross-references resolve even on partial pushes. Results
// are reported in the order tickets were given.
func (e *Engine) Sync(ctx context.Context, toSync, all []*ticket.Ticket) (*Summary, error) {
	depIndex := DependencyIndex(all)
	remoteByNumber := e.prefetch(ctx, toSync, all)

	plans := make([]*plan, len(toSync))
	for i, t := range toSync {
		plans[i] = e.classify(t, remoteByNumber, depIndex)
	}

	// Node IDs accumulate across phases: prefetched remotes first, then
	// issues created this run.
	nodeIDs := make(map[string]string)
	for _, t := range all {
		if n, ok := t.IssueNumber(); ok {
			if remote, found := remoteByNumber[n]; found {
				nodeIDs[t.ID] = remote.ID
			}
		}
	}

	results := make(map[string]*Result, len(toSync))
	for _, p := range plans {
		switch p.action {
		case actSkip:
			results[p.ticket.ID] = &Result{Outcome: Skipped, Message: p.reason}
		case actConflict:
			results[p.ticket.ID] = &Result{Outcome: Skipped, Message: p.reason}
		case actError:
			results[p.ticket.ID] = &Result{Outcome: Failed, Message: p.reason}
		}
	}

	e.executeCreates(ctx, plans, depIndex, nodeIDs, results)
	e.executeUpdates(ctx, plans, results)

	summary := e.report(toSync, results)

	e.linkSubIssues(ctx, toSync, nodeIDs)
	addedItems := e.addToProject(ctx, toSync, nodeIDs, results)
	e.setProjectFields(ctx, addedItems)
	e.resyncProjectStatus(ctx, toSync, nodeIDs)

	return summary, nil
}

// DependencyIndex maps ticket IDs to remote issue numbers for every synced
// ticket, so "Depends on" references render even for tickets outside the
// current push.
func DependencyIndex(all []*ticket.Ticket) map[string]int {
	index := make(map[string]int)
	for _, t := range all {
		if n, ok := t.IssueNumber(); ok {
			index[t.ID] = n
		}
	}
	return index
}

// prefetch bulk-fetches the remote issues for every synced ticket in the
// push plus their parents (needed for sub-issue linking). A fetch failure
// degrades to an empty result rather than aborting; affected tickets then
// fail classification individually.
func (e *Engine) prefetch(ctx context.Context, toSync, all []*ticket.Ticket) map[int]*github.Issue {
	byID := make(map[string]*ticket.Ticket, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}

	seen := make(map[int]bool)
	var numbers []int
	add := func(t *ticket.Ticket) {
		if n, ok := t.IssueNumber(); ok && !seen[n] {
			seen[n] = true
			numbers = append(numbers, n)
		}
	}
	for _, t := range toSync {
		add(t)
		if t.Parent != "" {
			if parent, ok := byID[t.Parent]; ok {
				add(parent)
			}
		}
	}

	issues, err := e.client.GetIssuesBatch(ctx, e.owner, e.repo, numbers)
	if err != nil {
		e.logger.Warn("fetching remote issues failed, treating all as missing", "error", err)
		return map[int]*github.Issue{}
	}
	return issues
}

// classify decides what to do with one ticket. Pure against the prefetched
// remote state; no I/O.
func (e *Engine) classify(t *ticket.Ticket, remoteByNumber map[int]*github.Issue, depIndex map[string]int) *plan {
	p := &plan{ticket: t}

	if !t.IsSynced() {
		p.action = actCreate
		return p
	}

	number, _ := t.IssueNumber()
	remote, ok := remoteByNumber[number]
	if !ok {
		p.action = actError
		p.reason = fmt.Sprintf("issue #%d not found", number)
		return p
	}
	p.remote = remote

	if markerID, found := ExtractTicketMarker(remote.Body); !found || markerID != t.ID {
		p.action = actConflict
		p.reason = "issue modified outside ttr"
		return p
	}

	p.wantTitle = t.Title
	p.wantBody = FormatIssueBody(t.ID, t.Body, t.Deps, depIndex)
	p.titleChanged = p.wantTitle != remote.Title
	p.bodyChanged = p.wantBody != remote.Body

	wantClosed := t.Status == "closed"
	remoteClosed := remote.State == "CLOSED"
	p.needsClose = wantClosed && !remoteClosed
	p.needsReopen = !wantClosed && remoteClosed

	if !p.titleChanged && !p.bodyChanged && !p.needsClose && !p.needsReopen {
		p.action = actSkip
		p.reason = "no changes"
		return p
	}
	p.action = actUpdate
	return p
}

// executeCreates runs the batched create mutation and persists each new
// issue number back into its ticket file. A write-back failure downgrades
// that ticket to failed even though the remote issue now exists.
func (e *Engine) executeCreates(ctx context.Context, plans []*plan, depIndex map[string]int, nodeIDs map[string]string, results map[string]*Result) {
	var createPlans []*plan
	for _, p := range plans {
		if p.action == actCreate {
			createPlans = append(createPlans, p)
		}
	}
	if len(createPlans) == 0 {
		return
	}

	inputs := make([]github.CreateIssueInput, len(createPlans))
	for i, p := range createPlans {
		t := p.ticket
		input := github.CreateIssueInput{
			RepositoryID: e.repoID,
			Title:        t.Title,
			Body:         FormatIssueBody(t.ID, t.Body, t.Deps, depIndex),
			LabelIDs:     e.resolveLabelIDs(ctx, t.Tags),
			IssueTypeID:  resolveIssueType(t.Type, e.cfg.Mapping.Type, e.issueTypeIDs),
		}
		if e.assigneeID != "" {
			input.AssigneeIDs = []string{e.assigneeID}
		}
		inputs[i] = input
	}

	created, err := e.client.CreateIssuesBatch(ctx, inputs)
	if err != nil {
		for _, p := range createPlans {
			results[p.ticket.ID] = &Result{Outcome: Failed, Message: err.Error()}
		}
		return
	}

	for i, res := range created {
		t := createPlans[i].ticket
		if res.Err != nil {
			results[t.ID] = &Result{Outcome: Failed, Message: res.Err.Error()}
			continue
		}
		if err := t.WriteExternalRef(fmt.Sprintf("%s%d", ticket.ExternalRefPrefix, res.Issue.Number)); err != nil {
			results[t.ID] = &Result{
				Outcome: Failed,
				Message: fmt.Sprintf("issue #%d created but external-ref not saved: %v", res.Issue.Number, err),
			}
			continue
		}
		nodeIDs[t.ID] = res.Issue.ID
		results[t.ID] = &Result{Outcome: Created, Issue: res.Issue}
	}
}

// executeUpdates runs the batched content update, then the close and reopen
// batches for the state transitions. A close or reopen failure overrides a
// successful content update for that ticket.
func (e *Engine) executeUpdates(ctx context.Context, plans []*plan, results map[string]*Result) {
	var contentPlans, closePlans, reopenPlans []*plan
	for _, p := range plans {
		if p.action != actUpdate {
			continue
		}
		results[p.ticket.ID] = &Result{Outcome: Updated, Issue: p.remote}
		if p.titleChanged || p.bodyChanged {
			contentPlans = append(contentPlans, p)
		}
		if p.needsClose {
			closePlans = append(closePlans, p)
		}
		if p.needsReopen {
			reopenPlans = append(reopenPlans, p)
		}
	}

	if len(contentPlans) > 0 {
		inputs := make([]github.UpdateIssueInput, len(contentPlans))
		for i, p := range contentPlans {
			input := github.UpdateIssueInput{ID: p.remote.ID}
			if p.titleChanged {
				title := p.wantTitle
				input.Title = &title
			}
			if p.bodyChanged {
				body := p.wantBody
				input.Body = &body
			}
			inputs[i] = input
		}
		e.applyBatch(contentPlans, results, func() ([]error, error) {
			return e.client.UpdateIssuesBatch(ctx, inputs)
		})
	}

	if len(closePlans) > 0 {
		e.applyBatch(closePlans, results, func() ([]error, error) {
			return e.client.CloseIssuesBatch(ctx, issueIDsOf(closePlans))
		})
	}
	if len(reopenPlans) > 0 {
		e.applyBatch(reopenPlans, results, func() ([]error, error) {
			return e.client.ReopenIssuesBatch(ctx, issueIDsOf(reopenPlans))
		})
	}
}

// applyBatch runs one mutation batch and downgrades the affected tickets to
// failed on batch-level or per-item errors.
func (e *Engine) applyBatch(plans []*plan, results map[string]*Result, run func() ([]error, error)) {
	errs, err := run()
	if err != nil {
		for _, p := range plans {
			results[p.ticket.ID] = &Result{Outcome: Failed, Message: err.Error()}
		}
		return
	}
	for i, itemErr := range errs {
		if itemErr != nil {
			results[plans[i].ticket.ID] = &Result{Outcome: Failed, Message: itemErr.Error()}
		}
	}
}

func issueIDsOf(plans []*plan) []string {
	ids := make([]string, len(plans))
	for i, p := range plans {
		ids[i] = p.remote.ID
	}
	return ids
}

// report prints one line per ticket, in input order, and tallies the summary.
func (e *Engine) report(toSync []*ticket.Ticket, results map[string]*Result) *Summary {
	summary := &Summary{}
	for _, t := range toSync {
		r := results[t.ID]
		if r == nil {
			continue
		}
		switch r.Outcome {
		case Created:
			summary.Created++
			fmt.Fprintf(e.out, "CREATE  %s → #%d  %s\n", t.ID, r.Issue.Number, r.Issue.Title)
			fmt.Fprintf(e.out, "  └─ %s\n", r.Issue.URL)
		case Updated:
			summary.Updated++
			fmt.Fprintf(e.out, "UPDATE  %s → #%d  %s\n", t.ID, r.Issue.Number, t.Title)
		case Skipped:
			summary.Skipped++
			fmt.Fprintf(e.out, "SKIP    %s  (%s)\n", t.ID, r.Message)
		case Failed:
			summary.Failed++
			fmt.Fprintf(e.out, "FAIL    %s  %s\n", t.ID, r.Message)
		}
	}
	return summary
}

// linkSubIssues nests each ticket under its parent's issue. Best-effort: a
// link failure is a warning, never a ticket failure.
func (e *Engine) linkSubIssues(ctx context.Context, toSync []*ticket.Ticket, nodeIDs map[string]string) {
	var links []github.SubIssueLink
	var linked []*ticket.Ticket
	for _, t := range toSync {
		if t.Parent == "" {
			continue
		}
		childID, childOK := nodeIDs[t.ID]
		parentID, parentOK := nodeIDs[t.Parent]
		if childOK && parentOK {
			links = append(links, github.SubIssueLink{ParentID: parentID, ChildID: childID})
			linked = append(linked, t)
		}
	}
	if len(links) == 0 {
		return
	}

	errs, err := e.client.AddSubIssuesBatch(ctx, links)
	if err != nil {
		e.logger.Warn("sub-issue linking failed", "error", err)
		return
	}
	for i, itemErr := range errs {
		if itemErr != nil {
			e.logger.Warn("sub-issue link failed",
				"ticket", linked[i].ID, "parent", linked[i].Parent, "error", itemErr)
			continue
		}
		fmt.Fprintf(e.out, "LINK    %s → %s (sub-issue)\n", linked[i].ID, linked[i].Parent)
	}
}

// addedItem pairs a ticket with its project item ID from this run's add.
type addedItem struct {
	ticket *ticket.Ticket
	itemID string
}

// addToProject adds this run's newly created issues to the configured
// project. Best-effort. Items already on the project come back without an
// item ID and are excluded from the subsequent field writes; the status
// re-sync phase covers their Status on the next pass.
func (e *Engine) addToProject(ctx context.Context, toSync []*ticket.Ticket, nodeIDs map[string]string, results map[string]*Result) []addedItem {
	if e.project == nil {
		return nil
	}

	var created []*ticket.Ticket
	var issueIDs []string
	for _, t := range toSync {
		if r := results[t.ID]; r != nil && r.Outcome == Created {
			if id, ok := nodeIDs[t.ID]; ok {
				created = append(created, t)
				issueIDs = append(issueIDs, id)
			}
		}
	}
	if len(issueIDs) == 0 {
		return nil
	}

	addResults, err := e.client.AddIssuesToProjectBatch(ctx, e.project.ID, issueIDs)
	if err != nil {
		e.logger.Warn("adding issues to project failed", "project", e.project.Title, "error", err)
		return nil
	}

	var added []addedItem
	for i, res := range addResults {
		if res.Err != nil {
			e.logger.Warn("adding issue to project failed",
				"ticket", created[i].ID, "project", e.project.Title, "error", res.Err)
			continue
		}
		fmt.Fprintf(e.out, "PROJECT %s → %s (added)\n", created[i].ID, e.project.Title)
		if res.ItemID != "" {
			added = append(added, addedItem{ticket: created[i], itemID: res.ItemID})
		}
	}
	return added
}

// setProjectFields applies the cached Status and Iteration values to the
// items added this run. Best-effort.
func (e *Engine) setProjectFields(ctx context.Context, added []addedItem) {
	if e.project == nil || e.fields == nil || len(added) == 0 {
		return
	}

	if len(e.fields.statusOptions) > 0 {
		var updates []github.FieldValueUpdate
		for _, a := range added {
			if optionID, ok := e.fields.statusOptions[a.ticket.Status]; ok {
				updates = append(updates, github.FieldValueUpdate{ItemID: a.itemID, ValueID: optionID})
			}
		}
		if len(updates) > 0 {
			if errs, err := e.client.SetItemsSingleSelectBatch(ctx, e.project.ID, e.fields.statusFieldID, updates); err != nil {
				e.logger.Warn("setting project status failed", "error", err)
			} else {
				e.warnItemErrors("setting project status failed", errs)
			}
		}
	}

	if e.fields.iterationID != "" {
		updates := make([]github.FieldValueUpdate, len(added))
		for i, a := range added {
			updates[i] = github.FieldValueUpdate{ItemID: a.itemID, ValueID: e.fields.iterationID}
		}
		if errs, err := e.client.SetItemsIterationBatch(ctx, e.project.ID, e.fields.iterationFieldID, updates); err != nil {
			e.logger.Warn("setting project iteration failed", "error", err)
		} else {
			e.warnItemErrors("setting project iteration failed", errs)
		}
	}
}

// resyncProjectStatus realigns the project Status field for every ticket
// with a remote link, not just this run's creates, so status edits made
// locally propagate on every push. Best-effort.
func (e *Engine) resyncProjectStatus(ctx context.Context, toSync []*ticket.Ticket, nodeIDs map[string]string) {
	if e.project == nil || e.fields == nil || len(e.fields.statusOptions) == 0 {
		return
	}

	var tickets []*ticket.Ticket
	var issueIDs []string
	for _, t := range toSync {
		id, ok := nodeIDs[t.ID]
		if !ok {
			continue
		}
		if _, mapped := e.fields.statusOptions[t.Status]; !mapped {
			continue
		}
		tickets = append(tickets, t)
		issueIDs = append(issueIDs, id)
	}
	if len(issueIDs) == 0 {
		return
	}

	itemIDs, err := e.client.GetProjectItemIDsBatch(ctx, e.project.ID, issueIDs)
	if err != nil {
		e.logger.Warn("fetching project items for status sync failed", "error", err)
		return
	}

	var updates []github.FieldValueUpdate
	for i, t := range tickets {
		itemID, ok := itemIDs[issueIDs[i]]
		if !ok {
			continue
		}
		updates = append(updates, github.FieldValueUpdate{
			ItemID:  itemID,
			ValueID: e.fields.statusOptions[t.Status],
		})
	}
	if len(updates) == 0 {
		return
	}

	errs, err := e.client.SetItemsSingleSelectBatch(ctx, e.project.ID, e.fields.statusFieldID, updates)
	if err != nil {
		e.logger.Warn("project status sync failed", "error", err)
		return
	}
	synced := 0
	for _, itemErr := range errs {
		if itemErr == nil {
			synced++
		} else {
			e.logger.Warn("project status sync failed for item", "error", itemErr)
		}
	}
	if synced > 0 {
		fmt.Fprintf(e.out, "STATUS  %d project item(s) synced\n", synced)
	}
}

func (e *Engine) warnItemErrors(msg string, errs []error) {
	for _, err := range errs {
		if err != nil {
			e.logger.Warn(msg, "error", err)
		}
	}
}

// Classification is exported for the status command, which reuses the same
// marker and diff rules without mutating anything.

// TicketState is a ticket's relationship to its remote issue.
type TicketState int

const (
	StateUnsynced TicketState = iota
	StateInSync
	StateModified
	StateConflict
	StateMissing
)

// ClassifyTicket reports a ticket's state against the prefetched remote
// issues, using the same rules Sync uses.
func (e *Engine) ClassifyTicket(t *ticket.Ticket, remoteByNumber map[int]*github.Issue, depIndex map[string]int) TicketState {
	p := e.classify(t, remoteByNumber, depIndex)
	switch p.action {
	case actCreate:
		return StateUnsynced
	case actError:
		return StateMissing
	case actConflict:
		return StateConflict
	case actUpdate:
		return StateModified
	default:
		return StateInSync
	}
}

// PrefetchFor exposes the engine's bulk issue fetch for the status command.
func (e *Engine) PrefetchFor(ctx context.Context, toSync, all []*ticket.Ticket) map[int]*github.Issue {
	return e.prefetch(ctx, toSync, all)
}
