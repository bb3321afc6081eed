// Package kafka publishes decoded BGP session and flow events onto a
// Kafka topic. It is an optional collaborator: cmd/netgauze-collector
// wires it in only when kafka.brokers is configured, and nothing in
// internal/bgp, internal/bmp, internal/flow or internal/peer imports
// it.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/netgauze-go/netgauze/internal/peer"
)

// Publisher produces JSON-encoded decoded events to one topic, keyed
// by peer BGP ID or flow exporter address so a consumer can partition
// by source.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

func NewPublisher(brokers []string, topic string, clientID string, logger *zap.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// eventEnvelope is the wire shape of one published record: Kind
// names which of the other fields is set.
type eventEnvelope struct {
	Kind        string `json:"kind"`
	PeerBGPID   uint32 `json:"peer_bgp_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	Exporter    string `json:"exporter,omitempty"`
	RecordCount int    `json:"record_count,omitempty"`
}

func (p *Publisher) produce(ctx context.Context, key []byte, env eventEnvelope) {
	body, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("kafka publisher: marshal event failed", zap.Error(err))
		return
	}
	rec := &kgo.Record{Topic: p.topic, Key: key, Value: body}
	p.client.Produce(ctx, rec, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("kafka publisher: produce failed", zap.Error(err))
		}
	})
}

// PublishEstablished publishes a SessionEstablished event.
func (p *Publisher) PublishEstablished(ctx context.Context, ev peer.SessionEstablished) {
	p.produce(ctx, bgpIDKey(ev.PeerBGPID), eventEnvelope{Kind: "session_established", PeerBGPID: ev.PeerBGPID})
}

// PublishTerminated publishes a SessionTerminated event.
func (p *Publisher) PublishTerminated(ctx context.Context, ev peer.SessionTerminated) {
	p.produce(ctx, bgpIDKey(ev.PeerBGPID), eventEnvelope{
		Kind:      "session_terminated",
		PeerBGPID: ev.PeerBGPID,
		Reason:    terminationReasonString(ev.Reason),
	})
}

// PublishMessage publishes a decoded BGP message event.
func (p *Publisher) PublishMessage(ctx context.Context, ev peer.MessageEvent) {
	p.produce(ctx, bgpIDKey(ev.PeerBGPID), eventEnvelope{
		Kind:        "bgp_message",
		PeerBGPID:   ev.PeerBGPID,
		MessageType: ev.Message.MessageType().String(),
	})
}

// PublishFlowPacket publishes a summary of one decoded NetFlow
// v9/IPFIX packet from exporter, carrying recordCount data records.
func (p *Publisher) PublishFlowPacket(ctx context.Context, exporter string, recordCount int) {
	p.produce(ctx, []byte(exporter), eventEnvelope{Kind: "flow_packet", Exporter: exporter, RecordCount: recordCount})
}

func terminationReasonString(r peer.TerminationReason) string {
	switch r {
	case peer.ReasonNotificationReceived:
		return "notification_received"
	case peer.ReasonNotificationSent:
		return "notification_sent"
	case peer.ReasonTcpFailure:
		return "tcp_failure"
	case peer.ReasonManualStop:
		return "manual_stop"
	case peer.ReasonCollisionLost:
		return "collision_lost"
	default:
		return "unknown"
	}
}

func bgpIDKey(bgpID uint32) []byte {
	return []byte{byte(bgpID >> 24), byte(bgpID >> 16), byte(bgpID >> 8), byte(bgpID)}
}

// Close flushes outstanding produce requests and closes the client.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
