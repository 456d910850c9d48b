package engine

import (
	"context"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

// IsComplete reports whether every object in catalog appears in solved.
// An empty catalog is never complete.
func IsComplete(catalog []escaperoom.PuzzleObject, solved []string) bool {
	if len(catalog) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(solved))
	for _, id := range solved {
		set[id] = struct{}{}
	}
	for _, o := range catalog {
		if _, ok := set[o.ID]; !ok {
			return false
		}
	}
	return true
}

// sessionComplete derives completion from the ledger on every call.
func sessionComplete(ctx context.Context, tx escaperoom.Tx, sessionID string) (bool, error) {
	catalog, err := tx.Catalog(ctx, sessionID)
	if err != nil {
		return false, err
	}
	solved, err := tx.SolvedObjectIDs(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return IsComplete(catalog, solved), nil
}
