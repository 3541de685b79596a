// Package mempool implements the mempool listener (C7): a binary
// publish/subscribe subscriber against the node's ZMQ rawtx/rawblock
// topics, with exponential-backoff reconnect and cooperative cancellation.
package mempool

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-zeromq/zmq4"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Message is one observed (raw_bytes, arrival_time) pair from a topic.
type Message struct {
	Topic   string
	Raw     []byte
	Arrived float64
}

// Listener subscribes to one or more ZMQ PUB endpoints and yields Messages
// on a channel, preserving strict source order within each topic (ZMQ PUB
// sockets never interleave a single publisher's own message stream) and
// reconnecting with exponential backoff on disconnect.
type Listener struct {
	endpoints map[string]string // topic -> tcp endpoint
	out       chan Message
}

// New returns a listener that will dial endpoints (topic name -> tcp://...)
// once Run is called. A typical configuration subscribes "rawtx" to
// tcp://127.0.0.1:28332 and "rawblock" to tcp://127.0.0.1:28333.
func New(endpoints map[string]string) *Listener {
	return &Listener{
		endpoints: endpoints,
		out:       make(chan Message, 256),
	}
}

// Messages returns the channel Run publishes to.
func (l *Listener) Messages() <-chan Message {
	return l.out
}

// Run dials every configured endpoint and forwards messages until ctx is
// cancelled. Cancellation is cooperative: the current in-flight Recv is
// allowed to complete before the subscriber goroutine returns. Run blocks
// until every per-topic subscriber goroutine has exited.
func (l *Listener) Run(ctx context.Context) {
	done := make(chan struct{}, len(l.endpoints))
	for topic, endpoint := range l.endpoints {
		go func(topic, endpoint string) {
			l.runTopic(ctx, topic, endpoint)
			done <- struct{}{}
		}(topic, endpoint)
	}
	for range l.endpoints {
		<-done
	}
	close(l.out)
}

func (l *Listener) runTopic(ctx context.Context, topic, endpoint string) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := l.subscribeOnce(ctx, topic, endpoint, &backoff); err != nil {
			log.Printf("mempool: %s subscriber disconnected: %v (retrying in %s)", topic, err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// subscribeOnce only returns nil on ctx cancellation.
		return
	}
}

// subscribeOnce dials, subscribes, and reads messages until the socket
// errors (triggering a reconnect with backoff) or ctx is cancelled.
func (l *Listener) subscribeOnce(ctx context.Context, topic, endpoint string, backoff *time.Duration) error {
	sock := zmq4.NewSub(ctx)
	defer sock.Close()

	if err := sock.Dial(endpoint); err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	// Successful connect resets backoff for the caller on the next error.
	*backoff = initialBackoff
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := sock.Recv()
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		if len(msg.Frames) < 2 {
			continue // malformed envelope (missing topic or payload frame)
		}
		now := float64(time.Now().UnixNano()) / 1e9
		select {
		case l.out <- Message{Topic: topic, Raw: msg.Frames[1], Arrived: now}:
		case <-ctx.Done():
			return nil
		}
	}
}
