package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/devboard/devboard/model"
	"go.mongodb.org/mongo-driver/mongo"
)

// wrapStoreErr maps driver failures onto the shared error taxonomy.
// Timeouts and network failures become ErrDatastoreUnavailable; everything
// else passes through wrapped with the operation name. Duplicate-key
// errors are deliberately not mapped here: which sentinel a collision
// means depends on the collection, so each insert path maps its own
// (ErrDuplicateToken for sessions, ErrDuplicateUsername for users).
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, model.ErrDatastoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
