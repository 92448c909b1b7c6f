// Package store defines runpack persistence. Implementations live in
// subpackages: memstore for tests and single-process use, sqlitestore and
// pgstore for relational backends, s3store and gcsstore for object storage.
package store

import (
	"context"
	"errors"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/runpack"
)

// ErrNotFound reports an unknown run id.
var ErrNotFound = errors.New("store: runpack not found")

// ErrDuplicate reports an attempt to overwrite an existing runpack. Sealed
// packs are immutable, so stores reject replacement.
var ErrDuplicate = errors.New("store: runpack already stored")

// Store persists sealed runpacks keyed by run id.
type Store interface {
	// PutRunpack stores a sealed pack. Storing the same run id twice fails
	// with ErrDuplicate.
	PutRunpack(ctx context.Context, p *runpack.Pack) error
	// GetRunpack loads one pack, ErrNotFound if absent.
	GetRunpack(ctx context.Context, run ident.RunID) (*runpack.Pack, error)
	// ListRunpacks returns the run ids recorded for a scenario, sorted.
	ListRunpacks(ctx context.Context, scenario ident.ScenarioID) ([]ident.RunID, error)
}
