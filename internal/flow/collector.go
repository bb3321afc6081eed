package flow

import (
	"context"
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/netgauze-go/netgauze/internal/flow/template"
)

// DecodedPacket pairs one decoded packet with the exporter address it
// arrived from and the data records recovered from it, resolved
// against the exporter's cached templates.
type DecodedPacket struct {
	Exporter net.Addr
	Packet   Packet
	Records  map[uint16][][]Value
}

// Collector runs a UDP accept loop for NetFlow v9/IPFIX exporters,
// decoding each datagram and installing templates in cache as
// TemplateSet/OptionsTemplateSet records arrive (it never withdraws
// them). Decoded
// data sets are delivered on Packets; a packet referencing a template
// ID the cache hasn't seen yet from that exporter contributes no
// records for that set (RFC 7011 §8's "unknown template" case) but is
// not itself an error.
type Collector struct {
	cache    *template.Cache
	logger   *zap.Logger
	maxBytes int

	conn      net.PacketConn
	listening atomic.Bool

	Packets chan DecodedPacket
}

// NewCollector returns a Collector bound to cache with an output
// channel buffered to bufferSize.
func NewCollector(cache *template.Cache, maxBytes, bufferSize int, logger *zap.Logger) *Collector {
	return &Collector{
		cache:    cache,
		logger:   logger,
		maxBytes: maxBytes,
		Packets:  make(chan DecodedPacket, bufferSize),
	}
}

// Listening reports whether the UDP socket is currently bound, used
// by the HTTP readiness surface.
func (c *Collector) Listening() bool {
	return c.listening.Load()
}

// Serve binds addr and reads datagrams until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.listening.Store(true)

	go func() {
		<-ctx.Done()
		c.listening.Store(false)
		conn.Close()
	}()

	buf := make([]byte, c.maxBytes)
	for {
		n, raddr, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				c.logger.Warn("flow collector: read failed", zap.Error(err))
				return nil
			}
		}
		c.handleDatagram(ctx, raddr, append([]byte(nil), buf[:n]...))
	}
}

func (c *Collector) handleDatagram(ctx context.Context, from net.Addr, buf []byte) {
	pkt, err := Decode(buf)
	if err != nil {
		c.logger.Warn("flow collector: decode failed", zap.Stringer("exporter", from), zap.Error(err))
		return
	}

	exporterID := exporterKey(from)
	records := make(map[uint16][][]Value)

	for _, set := range pkt.Sets {
		switch s := set.(type) {
		case TemplateSet:
			for _, rec := range s.Records {
				c.cache.InstallTemplateRecord(exporterID, rec)
			}
		case OptionsTemplateSet:
			for _, rec := range s.Records {
				c.cache.InstallOptionsTemplateRecord(exporterID, rec)
			}
		case DataSet:
			values, ok, err := c.cache.DecodeDataSet(exporterID, s)
			if err != nil {
				c.logger.Warn("flow collector: data set decode failed",
					zap.Stringer("exporter", from), zap.Uint16("template_id", s.TemplateID), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			records[s.TemplateID] = values
		}
	}

	select {
	case c.Packets <- DecodedPacket{Exporter: from, Packet: pkt, Records: records}:
	case <-ctx.Done():
	default:
		c.logger.Warn("flow collector: packets channel full, blocking", zap.Stringer("exporter", from))
		select {
		case c.Packets <- DecodedPacket{Exporter: from, Packet: pkt, Records: records}:
		case <-ctx.Done():
		}
	}
}

// exporterKey derives the template cache's exporter identifier from a
// UDP source address's IP, ignoring the ephemeral source port so
// repeated exports from the same device share one template namespace.
func exporterKey(addr net.Addr) uint32 {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok || udpAddr.IP == nil {
		return 0
	}
	ip4 := udpAddr.IP.To4()
	if ip4 == nil {
		// IPv6 exporters fold to a 32-bit key via the low 4 bytes,
		// sufficient for cache partitioning though not collision-free.
		ip6 := udpAddr.IP.To16()
		return uint32(ip6[12])<<24 | uint32(ip6[13])<<16 | uint32(ip6[14])<<8 | uint32(ip6[15])
	}
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}
