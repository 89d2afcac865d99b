package reconcile

import (
	"context"
	"errors"
	"fmt"

	"polar-billing-bridge/internal/metrics"
	"polar-billing-bridge/internal/model"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by UpdateOnly when no row has the external id.
var ErrNotFound = errors.New("record not found")

type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeApplied  Outcome = "applied"
	OutcomeStale    Outcome = "stale"
)

type Result struct {
	RowID   string
	Outcome Outcome
}

// Record constrains T so that *T is a mirrored gorm model.
type Record[T any] interface {
	*T
	model.Mirrored
}

// Reconciler absorbs upstream writes for one entity kind into the store. Each
// call runs its lookup, comparison and write inside a single transaction.
type Reconciler[T any, PT Record[T]] struct {
	db *gorm.DB
}

func New[T any, PT Record[T]](db *gorm.DB) *Reconciler[T, PT] {
	return &Reconciler[T, PT]{db: db}
}

// Upsert inserts incoming when its external id is unknown, replaces the stored
// row when incoming is at least as new, and otherwise drops it as stale.
func (r *Reconciler[T, PT]) Upsert(ctx context.Context, incoming PT) (Result, error) {
	return r.run(ctx, incoming, true)
}

// UpdateOnly behaves like Upsert but fails with ErrNotFound instead of
// inserting.
func (r *Reconciler[T, PT]) UpdateOnly(ctx context.Context, incoming PT) (Result, error) {
	return r.run(ctx, incoming, false)
}

// UpsertTx runs Upsert inside a caller-owned transaction.
func (r *Reconciler[T, PT]) UpsertTx(ctx context.Context, tx *gorm.DB, incoming PT) (Result, error) {
	return r.apply(ctx, tx, incoming, true)
}

func (r *Reconciler[T, PT]) run(ctx context.Context, incoming PT, insert bool) (Result, error) {
	if incoming.ExternalKey() == "" {
		return Result{}, fmt.Errorf("%s: empty external id", incoming.Kind())
	}

	var (
		res Result
		err error
	)
	for attempt := 1; ; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			res, err = r.apply(ctx, tx, incoming, insert)
			return err
		})
		if err == nil || attempt == maxAttempts {
			break
		}

		switch {
		case errors.Is(err, errLostInsertRace):
			// a concurrent delivery inserted the same id first; compare against it
			insert = false
		case isSerializationFailure(err):
			log.Warn().Err(err).
				Str("kind", string(incoming.Kind())).
				Str("external_id", incoming.ExternalKey()).
				Int("attempt", attempt).
				Msg("reconcile transaction aborted by the store, retrying")
		default:
			return Result{}, err
		}
		metrics.ReconcileRetries.WithLabelValues(string(incoming.Kind())).Inc()
	}
	if err != nil {
		return Result{}, err
	}

	metrics.ReconcileOutcomes.WithLabelValues(string(incoming.Kind()), string(res.Outcome)).Inc()
	return res, nil
}

// maxAttempts bounds the transactions a single write may run when concurrent
// deliveries of the same id collide.
const maxAttempts = 3

var errLostInsertRace = errors.New("concurrent insert of the same external id")

func (r *Reconciler[T, PT]) apply(ctx context.Context, tx *gorm.DB, incoming PT, insert bool) (Result, error) {
	kind := incoming.Kind()
	externalID := incoming.ExternalKey()

	existing := PT(new(T))
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_id = ?", externalID).
		Take(existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !insert {
			return Result{}, fmt.Errorf("%s %s: %w", kind, externalID, ErrNotFound)
		}
		return r.insert(ctx, tx, incoming)
	case err != nil:
		return Result{}, fmt.Errorf("lookup %s %s: %w", kind, externalID, err)
	}

	if !supersedes(incoming.LastModified(), existing.LastModified()) {
		log.Debug().
			Str("kind", string(kind)).
			Str("external_id", externalID).
			Interface("incoming_modified_at", incoming.LastModified()).
			Interface("stored_modified_at", existing.LastModified()).
			Msg("stale write ignored")
		return Result{RowID: existing.RowID(), Outcome: OutcomeStale}, nil
	}

	incoming.SetRowID(existing.RowID())
	if err := tx.WithContext(ctx).Save(incoming).Error; err != nil {
		return Result{}, fmt.Errorf("replace %s %s: %w", kind, externalID, err)
	}
	return Result{RowID: existing.RowID(), Outcome: OutcomeApplied}, nil
}

func (r *Reconciler[T, PT]) insert(ctx context.Context, tx *gorm.DB, incoming PT) (Result, error) {
	incoming.SetRowID("")
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(incoming)
	if result.Error != nil {
		return Result{}, fmt.Errorf("insert %s %s: %w", incoming.Kind(), incoming.ExternalKey(), result.Error)
	}
	if result.RowsAffected == 0 {
		return Result{}, errLostInsertRace
	}
	return Result{RowID: incoming.RowID(), Outcome: OutcomeInserted}, nil
}
