// Package realtime connects the alert watcher to the Firestore alert
// collection.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cenkalti/backoff/v4"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/nhle/registry-portal/internal/alert"
	"github.com/nhle/registry-portal/internal/model"
)

const (
	minRetryDelay = time.Second
	maxRetryDelay = time.Minute
)

// NewFirestoreClient initializes a Firebase app for projectID and returns its
// Firestore client. An empty credentialsFile falls back to application
// default credentials.
func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting firestore client: %w", err)
	}
	return client, nil
}

// FirestoreFeed listens to the newest document of an alert collection.
type FirestoreFeed struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

var _ alert.Feed = (*FirestoreFeed)(nil)

// NewFirestoreFeed returns a feed over collection.
func NewFirestoreFeed(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreFeed {
	return &FirestoreFeed{client: client, collection: collection, logger: logger}
}

// Subscribe starts listening in the background. Listener errors go to onError
// and the listener is reopened after a backoff. The returned cancel only
// cancels the listener context.
func (f *FirestoreFeed) Subscribe(ctx context.Context, onChange func(model.AlertChange), onError func(error)) (func(), error) {
	if f.client == nil {
		return nil, errors.New("firestore client not configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	go f.listen(ctx, onChange, onError)
	return cancel, nil
}

func (f *FirestoreFeed) query() firestore.Query {
	return f.client.Collection(f.collection).OrderBy("createdAt", firestore.Desc).Limit(1)
}

// newRetryPolicy never gives up; a snapshot received resets it.
func newRetryPolicy() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(minRetryDelay),
		backoff.WithMaxInterval(maxRetryDelay),
		backoff.WithRandomizationFactor(0.2),
		backoff.WithMaxElapsedTime(0),
	)
}

func (f *FirestoreFeed) listen(ctx context.Context, onChange func(model.AlertChange), onError func(error)) {
	retry := newRetryPolicy()

	for {
		it := f.query().Snapshots(ctx)
		err := f.drain(ctx, it, onChange, onError, retry)
		it.Stop()

		if ctx.Err() != nil {
			return
		}

		delay := retry.NextBackOff()
		onError(fmt.Errorf("listening to %s: %w", f.collection, err))
		f.logger.Warn("alert listener interrupted, reopening",
			slog.String("collection", f.collection),
			slog.Duration("backoff", delay),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// drain forwards snapshot changes until the iterator fails.
func (f *FirestoreFeed) drain(
	ctx context.Context,
	it *firestore.QuerySnapshotIterator,
	onChange func(model.AlertChange),
	onError func(error),
	retry backoff.BackOff,
) error {
	for {
		snap, err := it.Next()
		if err != nil {
			return err
		}
		retry.Reset()

		for _, ch := range snap.Changes {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			kind, ok := changeKind(ch.Kind)
			if !ok {
				continue
			}

			var a model.Alert
			if err := ch.Doc.DataTo(&a); err != nil {
				onError(fmt.Errorf("decoding alert %s: %w", ch.Doc.Ref.ID, err))
				continue
			}
			onChange(model.AlertChange{Kind: kind, Alert: a})
		}
	}
}

func changeKind(k firestore.DocumentChangeKind) (model.ChangeKind, bool) {
	switch k {
	case firestore.DocumentAdded:
		return model.ChangeAdded, true
	case firestore.DocumentModified:
		return model.ChangeModified, true
	case firestore.DocumentRemoved:
		return model.ChangeRemoved, true
	default:
		return "", false
	}
}
