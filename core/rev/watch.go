package rev

// DeliverPolicy controls where a Watch subscription starts.
type DeliverPolicy string

const (
	// DeliverNewPolicy delivers only records committed after the
	// subscription was created.
	DeliverNewPolicy DeliverPolicy = "new"
	// DeliverAllPolicy replays the full committed history first, then
	// continues live.
	DeliverAllPolicy DeliverPolicy = "all"
)

type WatchOpts struct {
	deliverPolicy DeliverPolicy
	aggregateID   string
}

func (w *WatchOpts) DeliverPolicy() DeliverPolicy { return w.deliverPolicy }
func (w *WatchOpts) AggregateID() string          { return w.aggregateID }

// Match reports whether rec passes the subscription filter.
func (w *WatchOpts) Match(rec Record) bool {
	return w.aggregateID == "" || w.aggregateID == rec.AggregateID
}

type WatchOption func(opts *WatchOpts)

// NewWatchOpts is used by storage implementations to resolve options.
func NewWatchOpts(opts ...WatchOption) WatchOpts {
	options := WatchOpts{deliverPolicy: DeliverNewPolicy}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithDeliverPolicy(policy DeliverPolicy) WatchOption {
	return func(opts *WatchOpts) { opts.deliverPolicy = policy }
}

// WithWatchAggregate restricts the subscription to one aggregate.
func WithWatchAggregate(aggregateID string) WatchOption {
	return func(opts *WatchOpts) { opts.aggregateID = aggregateID }
}

// Subscription is a live feed of committed records. Cancel is
// idempotent and closes the channel.
type Subscription interface {
	Chan() <-chan Record
	Cancel()
}
