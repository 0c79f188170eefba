// Package snapshotstore persists the last published auction view so a restart
// can serve it before the first synchronization cycle completes.
package snapshotstore

import (
	"context"
	"errors"

	"github.com/arjunamarcelino/velobid/go/internal/models"
)

// ErrNotFound is returned by LoadView when nothing has been saved.
var ErrNotFound = errors.New("no saved view")

// Store saves and loads whole views. SaveView replaces the previous view atomically.
type Store interface {
	SaveView(ctx context.Context, view models.CategorizedView) error
	LoadView(ctx context.Context) (models.CategorizedView, error)
}
