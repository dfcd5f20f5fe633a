// Package rank reconciles server badge groups against an authoritative
// rank source for registered game accounts.
package rank

import (
	"context"
	"errors"
	"fmt"
)

// Rank is a 1-based ordinal into a Table. Unranked means the external
// source reports no competitive rank for the account.
type Rank int

// Unranked is the sentinel for accounts with no current rank.
const Unranked Rank = 0

// ErrNotFound is returned by Directory implementations when a user is not
// currently reachable on the server. Sweeps skip such users and retry on
// the next pass.
var ErrNotFound = errors.New("user not found")

// Table is the immutable ordinal-to-badge-group mapping for one game.
type Table struct {
	groups []int
	names  []string
	byID   map[int]struct{}
}

// NewTable builds a Table from parallel group id and rank name lists.
func NewTable(groups []int, names []string) (*Table, error) {
	if len(groups) == 0 {
		return nil, errors.New("rank table is empty")
	}
	if len(groups) != len(names) {
		return nil, fmt.Errorf("rank table mismatch: %d groups, %d names", len(groups), len(names))
	}
	byID := make(map[int]struct{}, len(groups))
	for _, g := range groups {
		byID[g] = struct{}{}
	}
	return &Table{groups: groups, names: names, byID: byID}, nil
}

// Len returns the number of ranks in the table.
func (t *Table) Len() int { return len(t.groups) }

// Group maps a rank ordinal to its badge group id.
func (t *Table) Group(r Rank) (int, bool) {
	if r < 1 || int(r) > len(t.groups) {
		return 0, false
	}
	return t.groups[r-1], true
}

// Name returns the display name for a rank ordinal.
func (t *Table) Name(r Rank) string {
	if r < 1 || int(r) > len(t.names) {
		return "Unranked"
	}
	return t.names[r-1]
}

// Held returns the subset of a user's groups that are badge groups from
// this table, preserving the user's ordering. A well-behaved user holds
// at most one; more than one is an anomaly that Reconcile corrects.
func (t *Table) Held(userGroups []int) []int {
	var held []int
	for _, g := range userGroups {
		if _, ok := t.byID[g]; ok {
			held = append(held, g)
		}
	}
	return held
}

// GroupService mutates server group membership for a client, addressed by
// the client's database id.
type GroupService interface {
	AddGroups(ctx context.Context, databaseID int, groups []int) error
	DelGroups(ctx context.Context, databaseID int, groups []int) error
}

// Outcome classifies the result of one reconciliation.
type Outcome int

const (
	// NoChange means the user's badge already matched the source.
	NoChange Outcome = iota
	// BecameUnranked means a stale badge was removed and nothing added.
	BecameUnranked
	// RankChanged means the badge now reflects a new rank.
	RankChanged
)

// Change describes what a reconciliation did.
type Change struct {
	Outcome  Outcome
	Rank     Rank
	RankName string
	Added    int
	Removed  []int
}

// Engine applies rank deltas against one Table.
type Engine struct {
	table  *Table
	groups GroupService
}

// NewEngine creates an Engine over the given table and group service.
func NewEngine(table *Table, groups GroupService) *Engine {
	return &Engine{table: table, groups: groups}
}

// Table returns the rank table the engine reconciles against.
func (e *Engine) Table() *Table { return e.table }

// Reconcile brings a user's badge groups in line with the authoritative
// rank. It is idempotent: calling it again with the same inputs is a no-op.
// userGroups is the user's full current group membership; held badge groups
// are extracted here, so callers never need to pre-filter.
func (e *Engine) Reconcile(ctx context.Context, databaseID int, userGroups []int, r Rank) (Change, error) {
	existing := e.table.Held(userGroups)

	if r == Unranked {
		if len(existing) == 0 {
			return Change{Outcome: NoChange, Rank: Unranked}, nil
		}
		if err := e.groups.DelGroups(ctx, databaseID, existing); err != nil {
			return Change{}, fmt.Errorf("remove badge groups: %w", err)
		}
		return Change{Outcome: BecameUnranked, Rank: Unranked, Removed: existing}, nil
	}

	target, ok := e.table.Group(r)
	if !ok {
		return Change{}, fmt.Errorf("rank ordinal %d outside table of %d", r, e.table.Len())
	}

	if len(existing) == 1 && existing[0] == target {
		return Change{Outcome: NoChange, Rank: r, RankName: e.table.Name(r)}, nil
	}

	if len(existing) > 0 {
		if err := e.groups.DelGroups(ctx, databaseID, existing); err != nil {
			return Change{}, fmt.Errorf("remove badge groups: %w", err)
		}
	}
	if err := e.groups.AddGroups(ctx, databaseID, []int{target}); err != nil {
		return Change{}, fmt.Errorf("add badge group %d: %w", target, err)
	}

	return Change{
		Outcome:  RankChanged,
		Rank:     r,
		RankName: e.table.Name(r),
		Added:    target,
		Removed:  existing,
	}, nil
}
