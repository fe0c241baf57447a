package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/metrics"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/tier"
)

// State labels the subscriber's position in the feed lifecycle:
// Connecting → Synced → (Updating)* → Disconnected, with Unavailable covering
// failed resyncs ("feed unavailable, retrying").
type State string

const (
	StateConnecting  State = "connecting"
	StateSynced      State = "synced"
	StateUpdating    State = "updating"
	StateUnavailable State = "unavailable"
)

// Update is the message-passing surface between a Subscriber and its consumer
// (typically an SSE connection). Items is always the full ordered view —
// consumers never have to patch partial state.
type Update struct {
	State        State           `json:"state"`
	Items        []model.Listing `json:"items"`
	UnseenCount  int             `json:"unseenCount"`
	Notification *model.Listing  `json:"notification,omitempty"`
}

// Querier is the one-shot initial/resync query against the listings resource.
type Querier interface {
	ListVisible(ctx context.Context, role tier.Role) ([]model.Listing, error)
}

// Stream is the change-notification channel boundary. Subscribe returns a
// channel of events that is closed when the underlying channel disconnects
// (delivery is at-most-once, no replay), plus a release function that must
// drop the subscription immediately.
type Stream interface {
	Subscribe(ctx context.Context) (<-chan model.ChangeEvent, func(), error)
}

const (
	// updateBuffer bounds the consumer channel; when the consumer lags, the
	// oldest pending update is dropped so the loop never blocks on delivery.
	// The latest full snapshot always wins.
	updateBuffer = 16

	defaultRetryWait = 3 * time.Second
)

// Subscriber runs one viewer's feed loop. All View mutation happens on the
// Run goroutine; acknowledgements arrive through a command channel.
type Subscriber struct {
	id     string
	role   tier.Role
	source Querier
	stream Stream
	logger *slog.Logger
	stats  *metrics.Collector

	updates chan Update
	acks    chan time.Time

	// view survives resync cycles so the acknowledge high-water mark and the
	// notified-id set are only reset by a fresh connection, never by a
	// change-channel gap. Touched exclusively from the Run goroutine.
	view *View

	now       func() time.Time
	retryWait time.Duration
}

// NewSubscriber creates a feed subscriber for one viewer session.
func NewSubscriber(role tier.Role, source Querier, stream Stream, logger *slog.Logger, stats *metrics.Collector) *Subscriber {
	return &Subscriber{
		id:        uuid.NewString(),
		role:      role,
		source:    source,
		stream:    stream,
		logger:    logger,
		stats:     stats,
		updates:   make(chan Update, updateBuffer),
		acks:      make(chan time.Time, 1),
		now:       time.Now,
		retryWait: defaultRetryWait,
	}
}

// ID returns the session id the Hub and the ack endpoint address this
// subscriber by.
func (s *Subscriber) ID() string { return s.id }

// Updates returns the consumer channel. It is closed when Run returns.
func (s *Subscriber) Updates() <-chan Update { return s.updates }

// Acknowledge advances the viewer's high-water mark to now. Safe to call from
// any goroutine; the mutation itself happens on the Run loop. Redundant acks
// coalesce.
func (s *Subscriber) Acknowledge() {
	select {
	case s.acks <- s.now():
	default:
	}
}

// Run drives the feed until ctx is cancelled. Any stream disconnect triggers
// a silent full resync; only a failing resync surfaces StateUnavailable.
func (s *Subscriber) Run(ctx context.Context) error {
	s.stats.SubscriberConnected()
	defer s.stats.SubscriberDisconnected()
	defer close(s.updates)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		retry, err := s.sync(ctx)
		if err != nil {
			return err
		}
		if retry {
			s.emit(Update{State: StateUnavailable})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryWait):
			}
		}
	}
}

// sync performs one subscribe→query→serve cycle. It returns retry=true when
// the cycle failed before reaching Synced, and a non-nil error only on
// context cancellation.
func (s *Subscriber) sync(ctx context.Context) (retry bool, err error) {
	// Subscribe before the one-shot query so events arriving during the query
	// are not lost. An event older than the snapshot is harmless: applying it
	// converges to the same state.
	events, release, err := s.stream.Subscribe(ctx)
	if err != nil {
		s.logger.Warn("feed subscribe failed", "session", s.id, "err", err)
		return true, nil
	}
	defer release()

	items, err := s.source.ListVisible(ctx, s.role)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.logger.Warn("feed initial query failed", "session", s.id, "err", err)
		return true, nil
	}

	if s.view == nil {
		s.view = NewView(s.role, s.now(), items)
	} else {
		s.view.Resync(items)
	}
	view := s.view
	s.emit(Update{State: StateSynced, Items: view.Items(), UnseenCount: view.UnseenCount()})

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()

		case at := <-s.acks:
			view.Acknowledge(at)
			s.emit(Update{State: StateUpdating, Items: view.Items(), UnseenCount: view.UnseenCount()})

		case ev, ok := <-events:
			if !ok {
				// Channel dropped with no replay guarantee: resync from scratch.
				s.logger.Info("feed change channel closed, resyncing", "session", s.id)
				s.stats.RecordResync()
				return false, nil
			}
			notif := view.Apply(ev)
			s.stats.RecordEventApplied()
			if notif != nil {
				s.stats.RecordNotification()
			}
			s.emit(Update{
				State:        StateUpdating,
				Items:        view.Items(),
				UnseenCount:  view.UnseenCount(),
				Notification: notif,
			})
		}
	}
}

// emit delivers an update without ever blocking the loop: if the consumer is
// behind, the oldest buffered update is discarded.
func (s *Subscriber) emit(u Update) {
	for {
		select {
		case s.updates <- u:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}
