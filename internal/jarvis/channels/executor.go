package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Forge-Media/teamspeak-bot/common/trace"
)

// ChannelService creates channels and applies channel permissions.
type ChannelService interface {
	Create(ctx context.Context, name string, attrs map[string]string) (int, error)
	SetPermission(ctx context.Context, channelID int, key string, value int) error
}

// Result summarises one executor run.
type Result struct {
	// RunID correlates the run across logs and relay notices.
	RunID string
	// Created counts channels that exist after the run.
	Created int
	// Failures lists human-readable per-item failure descriptions, in the
	// order they occurred.
	Failures []string
}

// Summary renders the result as a message for the invoking user.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Created %d channel(s)", r.Created)
	if len(r.Failures) == 0 {
		b.WriteString(", all permissions set")
		return b.String()
	}
	fmt.Fprintf(&b, ", %d problem(s):", len(r.Failures))
	for _, f := range r.Failures {
		b.WriteString("\n - ")
		b.WriteString(f)
	}
	return b.String()
}

// Executor performs ordered creation of a parent-then-children channel tree
// and per-channel permission application, isolating per-item failures.
type Executor struct {
	svc ChannelService
}

// NewExecutor creates an Executor over the given channel service.
func NewExecutor(svc ChannelService) *Executor {
	return &Executor{svc: svc}
}

// Execute creates the batch. The parent is created first; a parent failure
// aborts the whole batch (children are never attempted) and is returned as
// the error. A child failure is recorded and the remaining children are still
// attempted, as is every permission entry. The returned Result is non-nil
// whenever the parent was created.
func (e *Executor) Execute(ctx context.Context, batch []*Spec) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	if len(batch) == 0 {
		return res, nil
	}

	ctx = trace.WithTraceID(ctx, res.RunID)
	parent := batch[0]
	if !parent.IsParent() {
		return nil, fmt.Errorf("batch must start with the parent channel, got child %q", parent.Name)
	}

	id, err := e.svc.Create(ctx, parent.Name, parent.Attributes)
	if err != nil {
		return nil, fmt.Errorf("create parent channel %q: %w", parent.Name, err)
	}
	parent.ID = id
	res.Created++
	slog.Info("parent channel created", "run", res.RunID, "name", parent.Name, "cid", id)

	for _, child := range batch[1:] {
		attrs := child.Attributes
		if child.Parent != nil {
			attrs["cpid"] = strconv.Itoa(child.Parent.ID)
		}
		id, err := e.svc.Create(ctx, child.Name, attrs)
		if err != nil {
			slog.Error("child channel failed", "run", res.RunID, "name", child.Name, "err", err)
			res.Failures = append(res.Failures, fmt.Sprintf("channel %q: %v", child.Name, err))
			continue
		}
		child.ID = id
		res.Created++
	}

	for _, spec := range batch {
		if spec.ID == 0 {
			// Never created; nothing to apply permissions to.
			continue
		}
		for _, perm := range spec.Permissions {
			if err := e.svc.SetPermission(ctx, spec.ID, perm.Key, perm.Value); err != nil {
				slog.Error("permission failed", "run", res.RunID, "cid", spec.ID, "perm", perm.Key, "err", err)
				res.Failures = append(res.Failures, fmt.Sprintf("channel %q permission %s: %v", spec.Name, perm.Key, err))
			}
		}
	}

	return res, nil
}
