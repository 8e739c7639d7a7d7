package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/revent-go/core/rev"
)

const defaultSubjectPrefix = "revent"

type StorageConfig struct {
	Connect       Connector    // Connect creates the NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	StreamName    string       // StreamName of the JetStream stream, defaults to REVENT
	SubjectPrefix string       // SubjectPrefix under which aggregates are stored
}

// Storage is a JetStream backed rev.EventStorage. Each committed Change
// is published as one message on the aggregate's subject, which makes
// the append atomic; the per-subject expected-last-sequence check turns
// concurrent committers into rev.ErrConflict losers.
//
// Aggregate IDs must be valid NATS subject tokens (no spaces, '.', '*'
// or '>').
type Storage struct {
	nc            *natsgo.Conn
	closeNc       closeFunc
	js            jetstream.JetStream
	stream        jetstream.Stream
	log           *slog.Logger
	subjectPrefix string
	streamName    string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
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

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = "REVENT"
	}
	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	log = log.With(
		slog.String("storage", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subject_prefix", subjectPrefix),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*natsgo.DefaultTimeout)
	defer cancel()

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{subjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		FirstSeq:   1,
		DenyDelete: true,
		DenyPurge:  true,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}

	log.Debug("stream ensured")

	return &Storage{
		nc:            nc,
		closeNc:       closeNc,
		js:            js,
		stream:        stream,
		log:           log,
		subjectPrefix: subjectPrefix,
		streamName:    streamName,
	}, nil
}

func (s *Storage) Close() error {
	s.js.CleanupPublisher()
	s.closeNc()
	s.log.Debug("closed storage")
	return nil
}

func (s *Storage) subjectFor(aggregateID string) string {
	return s.subjectPrefix + "." + aggregateID
}

func (s *Storage) Append(ctx context.Context, change *rev.Change) (rev.ID, error) {
	if change.Empty() {
		return 0, rev.ErrEmptyChange
	}

	var (
		aggID = change.AggregateID()
		subj  = s.subjectFor(aggID)
	)

	tailID, tailSeq, err := s.tailForSubject(ctx, subj)
	if err != nil {
		return 0, err
	}
	if tailID != change.Base() {
		return 0, fmt.Errorf(
			"%w: aggregate_id=%s base=%d tail=%d",
			rev.ErrConflict, aggID, change.Base(), tailID,
		)
	}

	records := change.Records()
	data, err := json.Marshal(records)
	if err != nil {
		return 0, fmt.Errorf("encode change: %w", err)
	}

	msg := natsgo.NewMsg(subj)
	msg.Header.Set("x-aggregate-id", aggID)
	msg.Header.Set("x-base", fmt.Sprintf("%d", change.Base()))
	msg.Data = data

	// The expected-last-sequence check makes the tail comparison above
	// authoritative: a racing committer that published first moves the
	// subject sequence and this publish is rejected by the server.
	_, err = s.js.PublishMsg(
		ctx,
		msg,
		jetstream.WithMsgID(records[0].RecordID),
		jetstream.WithExpectLastSequencePerSubject(tailSeq),
	)
	if err != nil {
		if isWrongLastSequence(err) {
			return 0, fmt.Errorf("%w: aggregate_id=%s base=%d", rev.ErrConflict, aggID, change.Base())
		}
		return 0, fmt.Errorf("%w: publish to %s: %v", rev.ErrUnavailable, subj, err)
	}

	last := records[len(records)-1].ID
	s.log.Debug("append",
		slog.String("aggregate_id", aggID),
		slog.Int("num_records", len(records)),
		last.SlogAttrWithKey("tail"),
	)
	return last, nil
}

func (s *Storage) Load(ctx context.Context, aggregateID string, from rev.ID) iter.Seq2[rev.Record, error] {
	subj := s.subjectFor(aggregateID)

	return func(yield func(rev.Record, error) bool) {
		// Capture the end of the stream up front so every range reads
		// a consistent prefix.
		lastMsg, err := s.stream.GetLastMsgForSubject(ctx, subj)
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgNotFound) {
				return
			}
			yield(rev.Record{}, fmt.Errorf("%w: %v", rev.ErrUnavailable, err))
			return
		}
		endSeq := lastMsg.Sequence

		cc, err := s.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
			DeliverPolicy:  jetstream.DeliverAllPolicy,
			FilterSubjects: []string{subj},
		})
		if err != nil {
			yield(rev.Record{}, fmt.Errorf("%w: %v", rev.ErrUnavailable, err))
			return
		}

		for {
			select {
			case <-ctx.Done():
				yield(rev.Record{}, ctx.Err())
				return
			default:
			}

			mb, err := cc.FetchNoWait(64)
			if err != nil {
				yield(rev.Record{}, fmt.Errorf("%w: %v", rev.ErrUnavailable, err))
				return
			}
			if mb.Error() != nil {
				yield(rev.Record{}, fmt.Errorf("%w: %v", rev.ErrUnavailable, mb.Error()))
				return
			}

			empty := true
			for msg := range mb.Messages() {
				empty = false

				md, err := msg.Metadata()
				if err != nil {
					yield(rev.Record{}, err)
					return
				}
				records, err := decodeChangeMsg(msg.Data())
				if err != nil {
					yield(rev.Record{}, err)
					return
				}
				for _, r := range records {
					if r.ID < from {
						continue
					}
					if !yield(r, nil) {
						return
					}
				}

				if md.Sequence.Stream >= endSeq {
					return
				}
			}
			if empty {
				return
			}
		}
	}
}

func (s *Storage) Watch(ctx context.Context, opts ...rev.WatchOption) (rev.Subscription, error) {
	options := rev.NewWatchOpts(opts...)

	filterSubject := s.subjectPrefix + ".>"
	if options.AggregateID() != "" {
		filterSubject = s.subjectFor(options.AggregateID())
	}

	consumerCfg := jetstream.ConsumerConfig{
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		FilterSubjects:    []string{filterSubject},
		InactiveThreshold: 10 * time.Minute,
	}
	if options.DeliverPolicy() == rev.DeliverAllPolicy {
		consumerCfg.DeliverPolicy = jetstream.DeliverAllPolicy
	}

	consumer, err := s.stream.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer filter=%s: %w", filterSubject, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan rev.Record, 64)

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := msg.Ack(); err != nil {
			s.log.Error("failed to ack message", slog.Any("error", err))
			return
		}
		records, err := decodeChangeMsg(msg.Data())
		if err != nil {
			s.log.Error("failed to decode message", slog.Any("error", err))
			return
		}
		for _, r := range records {
			if !options.Match(r) {
				continue
			}
			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
	})
	if err != nil {
		cancel()
		return nil, err
	}

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			// Unblock callbacks first, then close the channel only
			// once the consumer reports all of them finished.
			cancel()
			cc.Drain()
			go func() {
				<-cc.Closed()
				close(ch)
			}()
		})
	}
	context.AfterFunc(ctx, stop)

	return &jsSubscription{ch: ch, cancel: stop}, nil
}

// tailForSubject reads the newest message on subj and returns the last
// record ID it carries plus its stream sequence. A subject with no
// messages has tail 0.
func (s *Storage) tailForSubject(ctx context.Context, subj string) (rev.ID, uint64, error) {
	lastMsg, err := s.stream.GetLastMsgForSubject(ctx, subj)
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("%w: last message for %s: %v", rev.ErrUnavailable, subj, err)
	}
	records, err := decodeChangeMsg(lastMsg.Data)
	if err != nil {
		return 0, 0, err
	}
	if len(records) == 0 {
		return 0, 0, fmt.Errorf("empty change message at seq %d", lastMsg.Sequence)
	}
	return records[len(records)-1].ID, lastMsg.Sequence, nil
}

func decodeChangeMsg(data []byte) ([]rev.Record, error) {
	var records []rev.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode change message: %w", err)
	}
	return records, nil
}

func isWrongLastSequence(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

var _ rev.EventStorage = (*Storage)(nil)
var _ rev.Watcher = (*Storage)(nil)

// === Subscription ===

type jsSubscription struct {
	ch     chan rev.Record
	cancel func()
}

func (s *jsSubscription) Chan() <-chan rev.Record { return s.ch }
func (s *jsSubscription) Cancel()                 { s.cancel() }

var _ rev.Subscription = (*jsSubscription)(nil)
