// Package channel provides reference implementations of the external
// collaborators the resolution and affinity layers depend on: a
// request/reply lookup channel and a membership feed, both over Redis
// pub/sub. Production clusters with a different transport implement the
// same interfaces instead.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/twinmesh/twinmesh/types"
)

// Handler answers lookup requests for the entities a node owns.
type Handler func(req types.LookupRequest) types.LookupResult

// requestEnvelope wraps a lookup request with the reply channel the
// requester listens on.
type requestEnvelope struct {
	ReplyTo string              `json:"replyTo"`
	Request types.LookupRequest `json:"request"`
}

// RedisChannel implements request/reply lookups over Redis pub/sub.
// Requests for a partition are published on "<prefix>:req:<partition>";
// each request carries a unique reply channel the answer is published on.
type RedisChannel struct {
	client *redis.Client
	prefix string
	nodeID string
	seq    uint64
	done   chan struct{}
	wg     sync.WaitGroup
	closed int32
}

// NewRedisChannel creates a lookup channel over the given Redis server.
// nodeID must be unique per process; it namespaces reply channels.
func NewRedisChannel(addr, password string, db int, prefix, nodeID string) (*RedisChannel, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisChannel{
		client: client,
		prefix: prefix,
		nodeID: nodeID,
		done:   make(chan struct{}),
	}, nil
}

func (rc *RedisChannel) requestChannel(partitionKey string) string {
	return fmt.Sprintf("%s:req:%s", rc.prefix, partitionKey)
}

// Request sends a lookup request to the owner of partitionKey and waits
// for its answer or the context deadline. The deadline surfaces as
// context.DeadlineExceeded so callers can translate it to a timeout
// failure; every other error is a transport failure.
func (rc *RedisChannel) Request(ctx context.Context, partitionKey string, req types.LookupRequest) (types.LookupResult, error) {
	if atomic.LoadInt32(&rc.closed) != 0 {
		return types.LookupResult{}, ErrChannelClosed
	}

	replyTo := fmt.Sprintf("%s:reply:%s:%d", rc.prefix, rc.nodeID, atomic.AddUint64(&rc.seq, 1))

	sub := rc.client.Subscribe(ctx, replyTo)
	defer sub.Close()

	// Wait for the subscription to be established before publishing,
	// otherwise the answer can race past us.
	if _, err := sub.Receive(ctx); err != nil {
		return types.LookupResult{}, err
	}

	data, err := json.Marshal(requestEnvelope{ReplyTo: replyTo, Request: req})
	if err != nil {
		return types.LookupResult{}, err
	}

	if err := rc.client.Publish(ctx, rc.requestChannel(partitionKey), data).Err(); err != nil {
		return types.LookupResult{}, err
	}

	select {
	case <-ctx.Done():
		return types.LookupResult{}, ctx.Err()
	case msg, ok := <-sub.Channel():
		if !ok || msg == nil {
			return types.LookupResult{}, errors.New("reply subscription closed")
		}
		var result types.LookupResult
		if err := json.Unmarshal([]byte(msg.Payload), &result); err != nil {
			return types.LookupResult{}, err
		}
		return result, nil
	}
}

// Serve subscribes to the request channel for partitionKey and answers
// incoming requests with the handler until the channel is closed. Each
// owned partition gets its own Serve call.
func (rc *RedisChannel) Serve(ctx context.Context, partitionKey string, handler Handler) error {
	if atomic.LoadInt32(&rc.closed) != 0 {
		return ErrChannelClosed
	}

	sub := rc.client.Subscribe(ctx, rc.requestChannel(partitionKey))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return err
	}

	rc.wg.Add(1)
	go rc.answerRequests(sub, handler)

	return nil
}

// answerRequests drains one request subscription, answering each request
// on its reply channel.
func (rc *RedisChannel) answerRequests(sub *redis.PubSub, handler Handler) {
	defer rc.wg.Done()
	defer sub.Close()

	ch := sub.Channel()

	for {
		select {
		case <-rc.done:
			return
		case msg := <-ch:
			if msg == nil {
				return
			}

			var envelope requestEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				continue
			}
			if envelope.ReplyTo == "" {
				continue
			}

			result := handler(envelope.Request)
			data, err := json.Marshal(result)
			if err != nil {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			rc.client.Publish(ctx, envelope.ReplyTo, data)
			cancel()
		}
	}
}

// Client returns the underlying Redis client, for collaborators sharing
// the connection (e.g. the membership feed).
func (rc *RedisChannel) Client() *redis.Client {
	return rc.client
}

// Close stops all Serve loops and closes the Redis connection.
func (rc *RedisChannel) Close() error {
	if !atomic.CompareAndSwapInt32(&rc.closed, 0, 1) {
		return nil
	}
	close(rc.done)
	rc.wg.Wait()
	return rc.client.Close()
}

// ErrChannelClosed is returned when operations are performed on a closed
// channel.
var ErrChannelClosed = errors.New("lookup channel is closed")
