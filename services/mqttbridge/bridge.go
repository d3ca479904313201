// Package mqttbridge forwards telemetry from the in-process bus to an MQTT
// broker as JSON documents on <prefix>/<node>/reading and <prefix>/<node>/tx.
package mqttbridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/golang/glog"

	"telemetry-go/bus"
	"telemetry-go/errcode"
)

// Publisher sends one message to the broker.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) error
}

// Bridge relays telemetry/<kind> messages.
type Bridge struct {
	pub    Publisher
	prefix string
	node   string
}

// New returns a bridge. An empty prefix publishes directly under the node.
func New(pub Publisher, prefix, node string) *Bridge {
	return &Bridge{pub: pub, prefix: strings.Trim(prefix, "/"), node: node}
}

// Topic returns the broker topic for a telemetry kind.
func (b *Bridge) Topic(kind string) string {
	if b.prefix == "" {
		return b.node + "/" + kind
	}
	return b.prefix + "/" + b.node + "/" + kind
}

func (b *Bridge) handle(msg *bus.Message) error {
	if len(msg.Topic) != 2 {
		return nil
	}
	kind, ok := msg.Topic[1].(string)
	if !ok {
		return nil
	}
	body, err := json.Marshal(msg.Payload)
	if err != nil {
		return errcode.Wrap(errcode.InvalidParams, "mqttbridge.encode", err)
	}
	if err := b.pub.Publish(b.Topic(kind), body, msg.Retained); err != nil {
		return errcode.Wrap(errcode.Error, "mqttbridge.publish", err)
	}
	glog.V(2).Infof("PUB %q %s", b.Topic(kind), body)
	return nil
}

// Run relays until ctx is done. Publish failures are logged and dropped;
// the next reading supersedes them.
func (b *Bridge) Run(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(bus.T("telemetry", bus.SingleWild))
	defer conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			if err := b.handle(msg); err != nil {
				glog.Warningf("mqttbridge: %v", err)
			}
		}
	}
}

// Start runs the bridge in a goroutine.
func (b *Bridge) Start(ctx context.Context, conn *bus.Connection) {
	go b.Run(ctx, conn)
}
