package vectorDB

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
)

// ErrNoSnapshot is returned by Load when nothing was saved yet.
var ErrNoSnapshot = errors.New("no persisted index")

// Snapshot is the persisted form of a generation. Entry order is preserved so
// a restored index breaks ties the same way.
type Snapshot struct {
	Metric    Metric                    `json:"metric"`
	Dimension int                       `json:"dimension"`
	Documents []commonModels.Document   `json:"documents"`
	Entries   []commonModels.IndexEntry `json:"entries"`
	SavedAt   time.Time                 `json:"saved_at"`
}

type Persister interface {
	Save(ctx context.Context, s Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
	Clear(ctx context.Context) error
}

func SnapshotOf(g *Generation) Snapshot {
	return Snapshot{
		Metric:    g.Index.Metric(),
		Dimension: g.Index.Dimension(),
		Documents: g.Documents,
		Entries:   g.Index.Entries(),
		SavedAt:   time.Now(),
	}
}

// Restore rebuilds an index from a snapshot.
func Restore(s Snapshot) (*Index, error) {
	ix, err := NewIndex(s.Dimension, s.Metric)
	if err != nil {
		return nil, err
	}
	if err := ix.Add(s.Entries...); err != nil {
		return nil, err
	}
	return ix, nil
}

// Noop keeps the index for the lifetime of the process only.
type Noop struct{}

func (Noop) Save(context.Context, Snapshot) error   { return nil }
func (Noop) Load(context.Context) (Snapshot, error) { return Snapshot{}, ErrNoSnapshot }
func (Noop) Clear(context.Context) error            { return nil }
