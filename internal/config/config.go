package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration for the collector daemon: a
// service section, the set of configured BGP peers, the listener
// addresses the supervisor binds, and the flow (NetFlow v9/IPFIX)
// collector's UDP bind and template settings.
type Config struct {
	Service ServiceConfig         `koanf:"service"`
	Listen  ListenConfig          `koanf:"listen"`
	Peers   map[string]PeerConfig `koanf:"peers"`
	Flow    FlowConfig            `koanf:"flow"`
	Kafka   KafkaConfig           `koanf:"kafka"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// ListenConfig is the set of local addresses the supervisor's
// Listener binds for inbound BGP sessions.
type ListenConfig struct {
	Addresses          []string `koanf:"addresses"`
	AcceptUnconfigured bool     `koanf:"accept_unconfigured"`
}

// PeerConfig is one configured BGP neighbor, keyed by name under
// Config.Peers. It mirrors peer.Properties/peer.Config's fields in
// YAML-friendly form; cmd/netgauze-collector converts it via
// buildPeer.
type PeerConfig struct {
	LocalASN                uint32 `koanf:"local_asn"`
	PeerASN                 uint32 `koanf:"peer_asn"`
	LocalBGPID              string `koanf:"local_bgp_id"`
	PeerBGPID               string `koanf:"peer_bgp_id"`
	PeerAddress             string `koanf:"peer_address"`
	PeerPort                int    `koanf:"peer_port"`
	PassiveTcpEstablishment bool   `koanf:"passive_tcp_establishment"`
	AllowDynamicAS          bool   `koanf:"allow_dynamic_as"`

	ConnectRetryTimeSeconds int  `koanf:"connect_retry_time_seconds"`
	HoldTimeSeconds         int  `koanf:"hold_time_seconds"`
	KeepaliveTimeSeconds    int  `koanf:"keepalive_time_seconds"`
	EchoCapabilities        bool `koanf:"echo_capabilities"`
	FourOctetASN            bool `koanf:"four_octet_asn"`
}

// FlowConfig configures the NetFlow v9/IPFIX UDP collector.
// TemplateTTLMinutes is defaulted and validated, but nothing reads it:
// the template cache does not evict templates by age.
type FlowConfig struct {
	ListenAddress      string `koanf:"listen_address"`
	TemplateTTLMinutes int    `koanf:"template_ttl_minutes"`
	MaxPacketBytes     int    `koanf:"max_packet_bytes"`
}

// KafkaConfig is optional: when Brokers is empty, cmd/netgauze-collector
// runs without a decoded-event publisher.
type KafkaConfig struct {
	Brokers  []string `koanf:"brokers"`
	ClientID string   `koanf:"client_id"`
	Topic    string   `koanf:"topic"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: NETGAUZE_FLOW__LISTEN_ADDRESS → flow.listen_address
	if err := k.Load(env.Provider("NETGAUZE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "NETGAUZE_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "netgauze-collector-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Listen: ListenConfig{
			Addresses: []string{":179"},
		},
		Flow: FlowConfig{
			ListenAddress:      ":2055",
			TemplateTTLMinutes: 30,
			MaxPacketBytes:     65535,
		},
		Kafka: KafkaConfig{
			ClientID: "netgauze-collector",
			Topic:    "netgauze.events",
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Split comma-separated env strings for slice fields.
	if len(cfg.Listen.Addresses) == 1 && strings.Contains(cfg.Listen.Addresses[0], ",") {
		cfg.Listen.Addresses = strings.Split(cfg.Listen.Addresses[0], ",")
	}
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Listen.Addresses) == 0 {
		return fmt.Errorf("config: listen.addresses is required")
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	if c.Flow.MaxPacketBytes <= 0 {
		return fmt.Errorf("config: flow.max_packet_bytes must be > 0 (got %d)", c.Flow.MaxPacketBytes)
	}
	if c.Flow.TemplateTTLMinutes <= 0 {
		return fmt.Errorf("config: flow.template_ttl_minutes must be > 0 (got %d)", c.Flow.TemplateTTLMinutes)
	}
	for name, p := range c.Peers {
		if err := p.validate(); err != nil {
			return fmt.Errorf("config: peers.%s: %w", name, err)
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka.topic is required when kafka.brokers is set")
	}
	return nil
}

func (p *PeerConfig) validate() error {
	if p.PeerAddress == "" {
		return fmt.Errorf("peer_address is required")
	}
	if p.LocalBGPID == "" || p.PeerBGPID == "" {
		return fmt.Errorf("local_bgp_id and peer_bgp_id are required")
	}
	if p.LocalASN == 0 || p.PeerASN == 0 {
		return fmt.Errorf("local_asn and peer_asn are required")
	}
	return nil
}

// HoldTime, KeepaliveTime and ConnectRetryTime return the configured
// durations, falling back to RFC 4271's suggested defaults when unset.
func (p *PeerConfig) HoldTime() time.Duration {
	if p.HoldTimeSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(p.HoldTimeSeconds) * time.Second
}

func (p *PeerConfig) KeepaliveTime() time.Duration {
	if p.KeepaliveTimeSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.KeepaliveTimeSeconds) * time.Second
}

func (p *PeerConfig) ConnectRetryTime() time.Duration {
	if p.ConnectRetryTimeSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.ConnectRetryTimeSeconds) * time.Second
}
