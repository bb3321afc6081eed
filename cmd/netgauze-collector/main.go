// Command netgauze-collector runs the BGP peer supervisor/listener
// and the NetFlow v9/IPFIX UDP collector as one daemon, exposing
// health/readiness/metrics over HTTP.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/netgauze-go/netgauze/internal/bgp"
	"github.com/netgauze-go/netgauze/internal/config"
	"github.com/netgauze-go/netgauze/internal/flow"
	"github.com/netgauze-go/netgauze/internal/flow/template"
	"github.com/netgauze-go/netgauze/internal/httpapi"
	"github.com/netgauze-go/netgauze/internal/kafka"
	"github.com/netgauze-go/netgauze/internal/metrics"
	"github.com/netgauze-go/netgauze/internal/peer"
	"github.com/netgauze-go/netgauze/internal/supervisor"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: netgauze-collector <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve   Start the BGP peer supervisor and flow collector")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func runServe() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	logger.Info("starting netgauze-collector",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("http_listen", cfg.Service.HTTPListen),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sv := supervisor.New(ctx, logger.Named("supervisor"))

	var publisher *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		var err error
		publisher, err = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID, logger.Named("kafka"))
		if err != nil {
			logger.Fatal("failed to create kafka publisher", zap.Error(err))
		}
		defer publisher.Close()
	}

	for name, pc := range cfg.Peers {
		props, peerCfg, err := buildPeer(pc)
		if err != nil {
			logger.Fatal("invalid peer configuration", zap.String("peer", name), zap.Error(err))
		}
		p := peer.New(props, peerCfg, logger.Named("peer."+name))
		if err := sv.AddPeer(p); err != nil {
			logger.Fatal("failed to register peer", zap.String("peer", name), zap.Error(err))
		}
		p.Start()
		go forwardPeerEvents(ctx, p, publisher, logger.Named("peer."+name))
	}

	listener := supervisor.NewListener(sv, logger.Named("listener"))
	listener.AcceptUnconfigured = cfg.Listen.AcceptUnconfigured
	if err := listener.Serve(ctx, cfg.Listen.Addresses); err != nil {
		logger.Fatal("failed to start BGP listener", zap.Error(err))
	}
	logger.Info("BGP listener started", zap.Strings("addresses", cfg.Listen.Addresses))

	cache := template.New()
	collector := flow.NewCollector(cache, cfg.Flow.MaxPacketBytes, 64, logger.Named("flow"))
	go func() {
		if err := collector.Serve(ctx, cfg.Flow.ListenAddress); err != nil {
			logger.Error("flow collector stopped", zap.Error(err))
		}
	}()
	go forwardFlowPackets(ctx, collector, publisher, logger.Named("flow"))
	logger.Info("flow collector started", zap.String("address", cfg.Flow.ListenAddress))

	httpServer := httpapi.NewServer(cfg.Service.HTTPListen, sv, collector, logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("all components started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := sv.Shutdown(); err != nil {
		logger.Error("supervisor shutdown error", zap.Error(err))
	}
	cancel()

	logger.Info("netgauze-collector stopped")
}

// buildPeer converts a config.PeerConfig (YAML-friendly strings) into
// the peer.Properties/peer.Config pair peer.New expects.
func buildPeer(pc config.PeerConfig) (peer.Properties, peer.Config, error) {
	localID, err := ipv4ToUint32(pc.LocalBGPID)
	if err != nil {
		return peer.Properties{}, peer.Config{}, fmt.Errorf("local_bgp_id: %w", err)
	}
	peerID, err := ipv4ToUint32(pc.PeerBGPID)
	if err != nil {
		return peer.Properties{}, peer.Config{}, fmt.Errorf("peer_bgp_id: %w", err)
	}
	addr := net.ParseIP(pc.PeerAddress)
	if addr == nil {
		return peer.Properties{}, peer.Config{}, fmt.Errorf("peer_address: invalid IP %q", pc.PeerAddress)
	}

	props := peer.Properties{
		LocalASN:                bgp.ASN(pc.LocalASN),
		PeerASN:                 bgp.ASN(pc.PeerASN),
		LocalBGPID:              localID,
		PeerBGPID:               peerID,
		PeerAddr:                addr,
		PeerPort:                pc.PeerPort,
		PassiveTcpEstablishment: pc.PassiveTcpEstablishment,
		AllowDynamicAS:          pc.AllowDynamicAS,
	}

	peerCfg := peer.DefaultConfig()
	peerCfg.ConnectRetryTime = pc.ConnectRetryTime()
	peerCfg.HoldTime = pc.HoldTime()
	peerCfg.KeepaliveTime = pc.KeepaliveTime()
	peerCfg.EchoCapabilities = pc.EchoCapabilities
	if pc.FourOctetASN {
		peerCfg.LocalCapabilities = append(peerCfg.LocalCapabilities, bgp.FourOctetASN{ASN: bgp.ASN(pc.LocalASN)})
	}

	return props, peerCfg, nil
}

func ipv4ToUint32(s string) (uint32, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, fmt.Errorf("invalid IP %q", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("%q is not an IPv4 address", s)
	}
	return binary.BigEndian.Uint32(v4), nil
}

func forwardPeerEvents(ctx context.Context, p *peer.Peer, publisher *kafka.Publisher, logger *zap.Logger) {
	for {
		select {
		case ev := <-p.Events():
			switch {
			case ev.Established != nil:
				logger.Info("session established", zap.Uint32("peer_bgp_id", ev.Established.PeerBGPID))
				metrics.SessionsEstablished.WithLabelValues(fmt.Sprint(ev.Established.PeerBGPID)).Set(1)
				if publisher != nil {
					publisher.PublishEstablished(ctx, *ev.Established)
				}
			case ev.Terminated != nil:
				logger.Info("session terminated", zap.Uint32("peer_bgp_id", ev.Terminated.PeerBGPID))
				metrics.SessionsEstablished.WithLabelValues(fmt.Sprint(ev.Terminated.PeerBGPID)).Set(0)
				metrics.SessionTerminationsTotal.WithLabelValues(fmt.Sprint(ev.Terminated.PeerBGPID), terminationReasonLabel(ev.Terminated.Reason)).Inc()
				if publisher != nil {
					publisher.PublishTerminated(ctx, *ev.Terminated)
				}
			case ev.Message != nil:
				metrics.MessagesDecodedTotal.WithLabelValues("bgp", ev.Message.Message.MessageType().String()).Inc()
				if publisher != nil {
					publisher.PublishMessage(ctx, *ev.Message)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func terminationReasonLabel(r peer.TerminationReason) string {
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

func forwardFlowPackets(ctx context.Context, c *flow.Collector, publisher *kafka.Publisher, logger *zap.Logger) {
	for {
		select {
		case dp := <-c.Packets:
			total := 0
			for _, recs := range dp.Records {
				total += len(recs)
			}
			metrics.FlowPacketsTotal.WithLabelValues(dp.Exporter.String(), fmt.Sprint(dp.Packet.Header.Version)).Inc()
			metrics.FlowDataRecordsTotal.WithLabelValues(dp.Exporter.String()).Add(float64(total))
			if publisher != nil && total > 0 {
				publisher.PublishFlowPacket(ctx, dp.Exporter.String(), total)
			}
		case <-ctx.Done():
			return
		}
	}
}
