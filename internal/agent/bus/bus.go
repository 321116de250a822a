// Package bus carries agent requests and record envelopes between the Source
// Agents and the Collection Coordinator. Delivery is at-most-once: there is no
// acknowledgement and no redelivery.
package bus

import (
	"context"
	"fmt"

	"github.com/farmsense/server/internal/agent/model"
)

const topicPrefix = "farmsense"

// RecordsTopic is where agents publish envelopes for the coordinator.
const RecordsTopic = topicPrefix + ":records"

// RequestTopic returns the topic a Source Agent of kind listens on.
func RequestTopic(kind model.SourceKind) string {
	return fmt.Sprintf("%s:requests:%s", topicPrefix, kind)
}

// Handler consumes one raw message. Errors are the handler's own business; the
// bus never redelivers.
type Handler func(ctx context.Context, payload []byte)

// Bus is a topic based publish/subscribe transport.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe delivers messages for topic to h, one at a time, until ctx is
	// cancelled. It returns once the subscription is established.
	Subscribe(ctx context.Context, topic string, h Handler) error
}
