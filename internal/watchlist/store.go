package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/logging"
)

// Snapshot is an immutable view of the watchlist. Identities keep provider
// order, then face order within each reference image.
type Snapshot struct {
	identities []facematch.Identity
	index      *Index
	loadedAt   time.Time
}

// Identities implements facematch.Reference.
func (s *Snapshot) Identities() []facematch.Identity {
	if s == nil {
		return nil
	}
	return s.identities
}

// Len returns the number of identity embeddings.
func (s *Snapshot) Len() int {
	return len(s.Identities())
}

// LoadedAt returns when the snapshot was built (zero before the first reload).
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// Names returns the distinct identity names in snapshot order.
func (s *Snapshot) Names() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, id := range s.Identities() {
		if _, ok := seen[id.Name]; ok {
			continue
		}
		seen[id.Name] = struct{}{}
		names = append(names, id.Name)
	}
	return names
}

// Reference returns the snapshot as a matcher reference. Snapshots built
// with an index also answer approximate nearest neighbour lookups.
func (s *Snapshot) Reference() facematch.Reference {
	if s != nil && s.index != nil {
		return indexedSnapshot{s}
	}
	return s
}

type indexedSnapshot struct {
	*Snapshot
}

func (s indexedSnapshot) Nearest(query []float32) (facematch.Identity, bool) {
	return s.index.Nearest(query)
}

// SkippedReference records a reference image left out of a reload.
type SkippedReference struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Reason string `json:"reason"`
}

// ReloadReport summarizes a reload.
type ReloadReport struct {
	References int                `json:"references"`
	Identities int                `json:"identities"`
	Skipped    []SkippedReference `json:"skipped,omitempty"`
	Duration   time.Duration      `json:"duration"`
}

// Options configures a Store.
type Options struct {
	Metric     facematch.Metric
	BuildIndex bool
	Logger     *slog.Logger
	// Progress, when set, is called after each reference is processed.
	Progress func(done, total int)
	// OnReload, when set, is called after every successful swap.
	OnReload func(ReloadReport)
}

// Store holds the current watchlist snapshot and rebuilds it on demand.
type Store struct {
	provider ReferenceProvider
	detector facematch.Detector
	opts     Options
	logger   *slog.Logger

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
}

// NewStore creates a store with an empty snapshot. Call Reload to populate it.
func NewStore(provider ReferenceProvider, detector facematch.Detector, opts Options) *Store {
	s := &Store{
		provider: provider,
		detector: detector,
		opts:     opts,
		logger:   logging.Component(opts.Logger, "watchlist"),
	}
	s.current.Store(&Snapshot{})
	return s
}

// Snapshot returns the current snapshot. The result never changes; a reload
// publishes a new one.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reference returns the current snapshot as a matcher reference.
func (s *Store) Reference() facematch.Reference {
	return s.Snapshot().Reference()
}

// All returns the identities of the current snapshot.
func (s *Store) All() []facematch.Identity {
	return s.Snapshot().Identities()
}

// Reload rebuilds the snapshot from the provider and swaps it in atomically.
// Reference images that fail to load or contain no face are skipped with a
// warning. Only a listing failure aborts, leaving the old snapshot in place.
func (s *Store) Reload(ctx context.Context) (*ReloadReport, error) {
	return s.ReloadWithProgress(ctx, s.opts.Progress)
}

// ReloadWithProgress is Reload with an explicit progress callback.
func (s *Store) ReloadWithProgress(ctx context.Context, progress func(done, total int)) (*ReloadReport, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	refs, err := s.provider.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}

	report := &ReloadReport{References: len(refs)}
	var identities []facematch.Identity
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		faces, err := s.encode(ctx, ref)
		if err != nil {
			s.logger.Warn("skipping reference image",
				"name", ref.Name, "handle", ref.Handle, "error", err)
			report.Skipped = append(report.Skipped, SkippedReference{
				Name: ref.Name, Handle: ref.Handle, Reason: err.Error(),
			})
		} else {
			for _, f := range faces {
				identities = append(identities, facematch.Identity{Name: ref.Name, Embedding: f.Embedding})
			}
		}

		if progress != nil {
			progress(i+1, len(refs))
		}
	}

	snap := &Snapshot{identities: identities, loadedAt: time.Now()}
	if s.opts.BuildIndex {
		snap.index = BuildIndex(identities, s.opts.Metric)
	}
	s.current.Store(snap)

	report.Identities = len(identities)
	report.Duration = time.Since(start)
	s.logger.Info("watchlist reloaded",
		"references", report.References,
		"identities", report.Identities,
		"skipped", len(report.Skipped),
		"duration", report.Duration)

	if s.opts.OnReload != nil {
		s.opts.OnReload(*report)
	}
	return report, nil
}

func (s *Store) encode(ctx context.Context, ref Reference) ([]facematch.Face, error) {
	data, err := s.provider.Load(ctx, ref.Handle)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	faces, err := s.detector.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if len(faces) == 0 {
		return nil, ErrNoFace
	}
	return faces, nil
}
