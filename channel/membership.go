package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/twinmesh/twinmesh/affinity"
)

// MembershipListener receives worker join/leave notifications. For one
// handle a leave never arrives before its join has been observed by the
// same process; no ordering is guaranteed across processes.
// *affinity.Registry implements this interface.
type MembershipListener interface {
	OnWorkerJoined(h affinity.WorkerHandle)
	OnWorkerLeft(h affinity.WorkerHandle)
}

// Membership actions.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"
)

// MembershipEvent is the wire form of a worker join/leave notification.
type MembershipEvent struct {
	Action string                `json:"action"` // "join" or "leave"
	Worker affinity.WorkerHandle `json:"worker"`
	Sender string                `json:"sender,omitempty"`
}

// MembershipFeed delivers membership events between a session's workers
// over a Redis pub/sub channel. Events published by this process are also
// delivered locally, so a worker observes its own join.
type MembershipFeed struct {
	client   *redis.Client
	channel  string
	listener MembershipListener
	onError  func(error)
	pubsub   *redis.PubSub
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewMembershipFeed creates a feed on the given pub/sub channel. onError
// is called for malformed events; nil means they are dropped silently.
func NewMembershipFeed(client *redis.Client, channelName string, listener MembershipListener, onError func(error)) *MembershipFeed {
	return &MembershipFeed{
		client:   client,
		channel:  channelName,
		listener: listener,
		onError:  onError,
		done:     make(chan struct{}),
	}
}

// Subscribe starts listening for membership events.
func (mf *MembershipFeed) Subscribe(ctx context.Context) error {
	mf.pubsub = mf.client.Subscribe(ctx, mf.channel)
	if _, err := mf.pubsub.Receive(ctx); err != nil {
		return err
	}

	mf.wg.Add(1)
	go mf.listen()

	return nil
}

// Announce publishes a join or leave event for a worker.
func (mf *MembershipFeed) Announce(ctx context.Context, event MembershipEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return mf.client.Publish(ctx, mf.channel, data).Err()
}

// Close stops the feed. It does not close the shared Redis client.
func (mf *MembershipFeed) Close() error {
	close(mf.done)
	mf.wg.Wait()

	if mf.pubsub != nil {
		return mf.pubsub.Close()
	}
	return nil
}

// listen drains membership events from Redis pub/sub.
func (mf *MembershipFeed) listen() {
	defer mf.wg.Done()

	ch := mf.pubsub.Channel()

	for {
		select {
		case <-mf.done:
			return
		case msg := <-ch:
			if msg == nil {
				return
			}
			if err := mf.dispatch([]byte(msg.Payload)); err != nil && mf.onError != nil {
				mf.onError(err)
			}
		}
	}
}

// dispatch decodes one event and forwards it to the listener.
func (mf *MembershipFeed) dispatch(payload []byte) error {
	var event MembershipEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	if event.Worker.ID == "" {
		return fmt.Errorf("membership event without worker id")
	}

	switch event.Action {
	case ActionJoin:
		mf.listener.OnWorkerJoined(event.Worker)
	case ActionLeave:
		mf.listener.OnWorkerLeft(event.Worker)
	default:
		return fmt.Errorf("unknown membership action %q", event.Action)
	}
	return nil
}
