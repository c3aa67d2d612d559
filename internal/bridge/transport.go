package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/sirupsen/logrus"
)

// Transport is the host integration contract: a publish/subscribe primitive
// the Bridge is handed at construction. The Bridge only ever talks to this
// interface, never to libp2p types directly.
type Transport interface {
	Publish(topic string, data []byte) error
	Subscribe(topic string) (<-chan []byte, error)
	Close() error
}

// LibP2PTransport implements Transport over go-libp2p-pubsub's GossipSub: it
// joins each topic lazily on first use and fans incoming pubsub messages out
// onto plain Go byte channels.
type LibP2PTransport struct {
	host   host
	pubsub *pubsub.PubSub
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription
}

// host is the minimal surface of a libp2p.Host this package relies on; kept
// as a narrow local interface so tests can supply a stub.
type host interface {
	Close() error
}

// NewLibP2PTransport boots a libp2p host listening on listenAddr and joins a
// GossipSub router over it.
func NewLibP2PTransport(listenAddr string) (*LibP2PTransport, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("bridge: create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("bridge: create gossipsub: %w", err)
	}

	return &LibP2PTransport{
		host:   h,
		pubsub: ps,
		ctx:    ctx,
		cancel: cancel,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
	}, nil
}

func (t *LibP2PTransport) joinTopic(topic string) (*pubsub.Topic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tp, ok := t.topics[topic]; ok {
		return tp, nil
	}
	tp, err := t.pubsub.Join(topic)
	if err != nil {
		return nil, fmt.Errorf("bridge: join topic %s: %w", topic, err)
	}
	t.topics[topic] = tp
	return tp, nil
}

// Publish hands data to the topic's GossipSub router. It does not block
// indefinitely: libp2p-pubsub's Publish returns once the message is queued
// for local peers.
func (t *LibP2PTransport) Publish(topic string, data []byte) error {
	tp, err := t.joinTopic(topic)
	if err != nil {
		return err
	}
	if err := tp.Publish(t.ctx, data); err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	return nil
}

// Subscribe joins topic (if not already joined) and returns a channel of raw
// payloads, one per inbound pubsub message.
func (t *LibP2PTransport) Subscribe(topic string) (<-chan []byte, error) {
	tp, err := t.joinTopic(topic)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	sub, ok := t.subs[topic]
	if !ok {
		sub, err = tp.Subscribe()
		if err != nil {
			t.mu.Unlock()
			return nil, fmt.Errorf("bridge: subscribe topic %s: %w", topic, err)
		}
		t.subs[topic] = sub
	}
	t.mu.Unlock()

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for {
			msg, err := sub.Next(t.ctx)
			if err != nil {
				if t.ctx.Err() == nil {
					logrus.WithError(err).Warn("bridge: subscription read failed")
				}
				return
			}
			select {
			case out <- msg.Data:
			case <-t.ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close tears down every subscription and the underlying host.
func (t *LibP2PTransport) Close() error {
	t.cancel()
	return t.host.Close()
}
