package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	idspkg "github.com/capkit/capkit/internal/runtime/ids"
	"github.com/capkit/capkit/internal/runtime/jsoncodec"
	loggingpkg "github.com/capkit/capkit/internal/runtime/logging"
)

const (
	resultsTopic   = "results"
	lifecycleTopic = "lifecycle"

	defaultStreamBuffer = 64
)

// Broadcaster republishes every terminal result and every lifecycle
// transition on an in-process pub/sub. Unlike the single-subscriber stream of
// the original design this is true fan-out: each subscription is independent,
// with its own buffer. A subscriber that stops draining loses messages beyond
// its buffer rather than stalling the runtime.
type Broadcaster struct {
	pubsub *gochannel.GoChannel
	buffer int64
	logger loggingpkg.ServiceLogger
}

// NewBroadcaster creates the broadcast pub/sub for one capability instance.
func NewBroadcaster(buffer int64, logger loggingpkg.ServiceLogger) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}

	var wmLogger watermill.LoggerAdapter = watermill.NopLogger{}
	if logger != nil {
		wmLogger = loggingpkg.NewWatermillAdapter(logger)
	}

	return &Broadcaster{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: buffer,
		}, wmLogger),
		buffer: buffer,
		logger: logger,
	}
}

// PublishResult pushes a terminal result to all current result subscribers.
func (b *Broadcaster) PublishResult(res *Result) error {
	payload, err := jsoncodec.Marshal(res)
	if err != nil {
		return err
	}

	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.Metadata.Set("request_id", res.RequestID)
	if res.Success {
		msg.Metadata.Set("outcome", "success")
	} else {
		msg.Metadata.Set("outcome", "failure")
	}
	return b.pubsub.Publish(resultsTopic, msg)
}

// SubscribeResults returns an independent stream of every result published
// after the call. The channel closes when ctx is cancelled or the broadcaster
// shuts down.
func (b *Broadcaster) SubscribeResults(ctx context.Context) (<-chan *Result, error) {
	messages, err := b.pubsub.Subscribe(ctx, resultsTopic)
	if err != nil {
		return nil, err
	}

	out := make(chan *Result, b.buffer)
	go func() {
		defer close(out)
		for msg := range messages {
			var res Result
			if err := jsoncodec.Unmarshal(msg.Payload, &res); err != nil {
				if b.logger != nil {
					b.logger.Error("Dropping undecodable result message", err, loggingpkg.LogFields{"message_uuid": msg.UUID})
				}
				msg.Ack()
				continue
			}
			select {
			case out <- &res:
			default:
				// Subscriber is not draining; drop rather than stall.
			}
			msg.Ack()
		}
	}()
	return out, nil
}

type stateEvent struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// PublishState pushes a lifecycle transition to all current state subscribers.
func (b *Broadcaster) PublishState(state LifecycleState) error {
	payload, err := jsoncodec.Marshal(stateEvent{State: state.String(), At: time.Now().UTC()})
	if err != nil {
		return err
	}

	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.Metadata.Set("state", state.String())
	return b.pubsub.Publish(lifecycleTopic, msg)
}

// SubscribeStates returns an independent stream of lifecycle transitions
// published after the call. History is never replayed; the capability layers
// the current-state-at-subscribe semantics on top.
func (b *Broadcaster) SubscribeStates(ctx context.Context) (<-chan LifecycleState, error) {
	messages, err := b.pubsub.Subscribe(ctx, lifecycleTopic)
	if err != nil {
		return nil, err
	}

	out := make(chan LifecycleState, b.buffer)
	go func() {
		defer close(out)
		for msg := range messages {
			var event stateEvent
			if err := jsoncodec.Unmarshal(msg.Payload, &event); err != nil {
				if b.logger != nil {
					b.logger.Error("Dropping undecodable state message", err, loggingpkg.LogFields{"message_uuid": msg.UUID})
				}
				msg.Ack()
				continue
			}
			select {
			case out <- parseState(event.State):
			default:
			}
			msg.Ack()
		}
	}()
	return out, nil
}

// Close shuts the pub/sub down and closes all subscriber channels.
func (b *Broadcaster) Close() error {
	return b.pubsub.Close()
}

func parseState(s string) LifecycleState {
	switch s {
	case "initializing":
		return StateInitializing
	case "available":
		return StateAvailable
	case "unavailable":
		return StateUnavailable
	case "terminating":
		return StateTerminating
	default:
		return StateUnknown
	}
}
