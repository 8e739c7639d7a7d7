package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/revent-go/core/rev"
)

type SnapshotterConfig struct {
	Connect Connector // Connect creates the NATS connection. If nil, ConnectDefault() is used.
	Bucket  string    // Bucket is the KV bucket snapshots are kept in.
}

// Snapshotter keeps the latest snapshot per aggregate in a JetStream
// key-value bucket.
type Snapshotter struct {
	kv      jetstream.KeyValue
	closeNc closeFunc
}

func NewSnapshotter(cfg SnapshotterConfig) (*Snapshotter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	kv, err := js.CreateOrUpdateKeyValue(context.Background(), jetstream.KeyValueConfig{
		Bucket:  cfg.Bucket,
		Storage: jetstream.FileStorage,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}

	return &Snapshotter{kv: kv, closeNc: closeNc}, nil
}

func (s *Snapshotter) Close() error {
	s.closeNc()
	return nil
}

func (s *Snapshotter) SaveSnapshot(ctx context.Context, snapshot *rev.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, snapshot.AggregateID, data); err != nil {
		return fmt.Errorf("put snapshot for %s: %w", snapshot.AggregateID, err)
	}
	return nil
}

func (s *Snapshotter) LoadSnapshot(ctx context.Context, aggregateID string) (*rev.Snapshot, error) {
	entry, err := s.kv.Get(ctx, aggregateID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, rev.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("get snapshot for %s: %w", aggregateID, err)
	}
	out := &rev.Snapshot{}
	if err := json.Unmarshal(entry.Value(), out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ rev.Snapshotter = (*Snapshotter)(nil)
