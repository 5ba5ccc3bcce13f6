package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultCollection = "alertsync_locks"
	DefaultTTL        = 30 * time.Minute
)

// Locker is a RunLocker backed by one Firestore document per key
type Locker struct {
	client     *firestore.Client
	collection string
	ttl        time.Duration
	now        func() time.Time
}

type lockDoc struct {
	Owner      string    `firestore:"owner"`
	AcquiredAt time.Time `firestore:"acquired_at"`
	ExpiresAt  time.Time `firestore:"expires_at"`
}

type config struct {
	databaseID string
	collection string
	ttl        time.Duration
	clientOpts []option.ClientOption
	now        func() time.Time
}

// Option configures the Locker
type Option func(*config)

// WithDatabaseID selects a named Firestore database
func WithDatabaseID(id string) Option {
	return func(c *config) {
		c.databaseID = id
	}
}

// WithCollection overrides DefaultCollection
func WithCollection(name string) Option {
	return func(c *config) {
		c.collection = name
	}
}

// WithTTL sets how long an unreleased lock blocks other runs
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithClientOptions passes options to the Firestore client
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// WithClock replaces time.Now
func WithClock(fn func() time.Time) Option {
	return func(c *config) {
		c.now = fn
	}
}

// New creates a Locker for projectID
func New(ctx context.Context, projectID string, opts ...Option) (*Locker, error) {
	cfg := &config{
		databaseID: firestore.DefaultDatabaseID,
		collection: DefaultCollection,
		ttl:        DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, cfg.databaseID, cfg.clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", cfg.databaseID),
		)
	}

	return &Locker{
		client:     client,
		collection: cfg.collection,
		ttl:        cfg.ttl,
		now:        cfg.now,
	}, nil
}

// Close closes the Firestore client
func (x *Locker) Close() error {
	return x.client.Close()
}

var _ interfaces.RunLocker = (*Locker)(nil)

// Acquire takes the lock for key on behalf of owner. An expired lock is taken over.
func (x *Locker) Acquire(ctx context.Context, key, owner string) (interfaces.ReleaseFunc, error) {
	ref := x.client.Collection(x.collection).Doc(docID(key))

	err := x.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to read lock document")
		}

		now := x.now()
		if err == nil {
			var cur lockDoc
			if err := snap.DataTo(&cur); err != nil {
				return goerr.Wrap(err, "failed to decode lock document")
			}
			if now.Before(cur.ExpiresAt) {
				return goerr.New("run lock is held by another run",
					goerr.V("holder", cur.Owner),
					goerr.V("expires_at", cur.ExpiresAt),
					goerr.T(types.ErrTagLocked),
				)
			}
			ctxlog.From(ctx).Warn("Taking over expired run lock", "key", key, "previous_owner", cur.Owner)
		}

		return tx.Set(ref, &lockDoc{
			Owner:      owner,
			AcquiredAt: now,
			ExpiresAt:  now.Add(x.ttl),
		})
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to acquire run lock", goerr.V("key", key), goerr.V("owner", owner))
	}

	ctxlog.From(ctx).Debug("Acquired run lock", "key", key, "owner", owner)

	return func(ctx context.Context) error {
		return x.release(ctx, ref, owner)
	}, nil
}

func (x *Locker) release(ctx context.Context, ref *firestore.DocumentRef, owner string) error {
	err := x.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read lock document")
		}

		var cur lockDoc
		if err := snap.DataTo(&cur); err != nil {
			return goerr.Wrap(err, "failed to decode lock document")
		}
		if cur.Owner != owner {
			// expired and taken over by another run
			return nil
		}

		return tx.Delete(ref)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to release run lock", goerr.V("doc", ref.ID), goerr.V("owner", owner))
	}
	return nil
}

func docID(key string) string {
	return strings.ReplaceAll(key, "/", "__")
}
