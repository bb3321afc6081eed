package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			InstanceID:             "test",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Listen: ListenConfig{
			Addresses: []string{":179"},
		},
		Peers: map[string]PeerConfig{
			"r1": {
				LocalASN:    65001,
				PeerASN:     65002,
				LocalBGPID:  "192.0.2.1",
				PeerBGPID:   "192.0.2.2",
				PeerAddress: "192.0.2.2",
			},
		},
		Flow: FlowConfig{
			ListenAddress:      ":2055",
			TemplateTTLMinutes: 30,
			MaxPacketBytes:     65535,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_NoListenAddresses(t *testing.T) {
	cfg := validConfig()
	cfg.Listen.Addresses = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty listen.addresses")
	}
}

func TestValidate_PeerMissingAddress(t *testing.T) {
	cfg := validConfig()
	p := cfg.Peers["r1"]
	p.PeerAddress = ""
	cfg.Peers["r1"] = p
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for peer missing peer_address")
	}
}

func TestValidate_PeerMissingBGPID(t *testing.T) {
	cfg := validConfig()
	p := cfg.Peers["r1"]
	p.PeerBGPID = ""
	cfg.Peers["r1"] = p
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for peer missing peer_bgp_id")
	}
}

func TestValidate_PeerMissingASN(t *testing.T) {
	cfg := validConfig()
	p := cfg.Peers["r1"]
	p.PeerASN = 0
	cfg.Peers["r1"] = p
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for peer missing peer_asn")
	}
}

func TestValidate_FlowMaxPacketBytesZero(t *testing.T) {
	cfg := validConfig()
	cfg.Flow.MaxPacketBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for flow.max_packet_bytes = 0")
	}
}

func TestValidate_FlowTemplateTTLZero(t *testing.T) {
	cfg := validConfig()
	cfg.Flow.TemplateTTLMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for flow.template_ttl_minutes = 0")
	}
}

func TestValidate_ShutdownTimeoutZero(t *testing.T) {
	cfg := validConfig()
	cfg.Service.ShutdownTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for shutdown_timeout_seconds = 0")
	}
}

func TestValidate_KafkaTopicRequiredWhenBrokersSet(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for kafka.brokers set without kafka.topic")
	}
}

func TestPeerConfigDefaults(t *testing.T) {
	p := PeerConfig{}
	if p.HoldTime().Seconds() != 90 {
		t.Errorf("expected default hold time 90s, got %v", p.HoldTime())
	}
	if p.KeepaliveTime().Seconds() != 30 {
		t.Errorf("expected default keepalive time 30s, got %v", p.KeepaliveTime())
	}
	if p.ConnectRetryTime().Seconds() != 120 {
		t.Errorf("expected default connect retry time 120s, got %v", p.ConnectRetryTime())
	}
}

func writeMinimalYAML(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
listen:
  addresses:
    - ":179"
peers:
  r1:
    local_asn: 65001
    peer_asn: 65002
    local_bgp_id: "192.0.2.1"
    peer_bgp_id: "192.0.2.2"
    peer_address: "192.0.2.2"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_EnvOverrideLogLevel(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("NETGAUZE_SERVICE__LOG_LEVEL", "debug")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.LogLevel != "debug" {
		t.Errorf("expected log_level 'debug' from env, got %q", cfg.Service.LogLevel)
	}
}

func TestLoad_EnvOverrideFlowListenAddress(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("NETGAUZE_FLOW__LISTEN_ADDRESS", ":9999")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Flow.ListenAddress != ":9999" {
		t.Errorf("expected flow listen address ':9999' from env, got %q", cfg.Flow.ListenAddress)
	}
}

func TestLoad_MissingPeerAddressFailsValidation(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
listen:
  addresses:
    - ":179"
peers:
  r1:
    local_asn: 65001
    peer_asn: 65002
    local_bgp_id: "192.0.2.1"
    peer_bgp_id: "192.0.2.2"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(p); err == nil {
		t.Fatal("expected validation error for peer missing peer_address")
	}
}
