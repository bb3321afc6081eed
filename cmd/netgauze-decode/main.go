// Command netgauze-decode reads a raw capture file and prints one
// line per decoded message to stdout, for offline inspection of BGP,
// BMP or NetFlow v9/IPFIX captures without standing up a collector.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/netgauze-go/netgauze/internal/bgp"
	"github.com/netgauze-go/netgauze/internal/bmp"
	"github.com/netgauze-go/netgauze/internal/flow"
)

func main() {
	proto := flag.String("proto", "", "protocol to decode: bgp, bmp, or flow")
	path := flag.String("file", "", "path to the raw capture file")
	flag.Parse()

	if *proto == "" || *path == "" {
		fmt.Fprintln(os.Stderr, "Usage: netgauze-decode -proto <bgp|bmp|flow> -file <path>")
		os.Exit(1)
	}

	buf, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", *path, err)
		os.Exit(1)
	}

	var decodeErr error
	switch *proto {
	case "bgp":
		decodeErr = decodeBGP(buf)
	case "bmp":
		decodeErr = decodeBMP(buf)
	case "flow":
		decodeErr = decodeFlow(buf)
	default:
		fmt.Fprintf(os.Stderr, "unknown protocol %q (want bgp, bmp, or flow)\n", *proto)
		os.Exit(1)
	}
	if decodeErr != nil {
		fmt.Fprintf(os.Stderr, "decode error: %v\n", decodeErr)
		os.Exit(1)
	}
}

// decodeBGP treats buf as a concatenated stream of framed BGP
// messages, the same byte shape a peer's TCP read loop sees.
func decodeBGP(buf []byte) error {
	ctx := bgp.DecodeContext{}
	n := 0
	for len(buf) > 0 {
		tail, msg, err := bgp.Decode(buf, ctx)
		if err != nil {
			return fmt.Errorf("message %d: %w", n, err)
		}
		fmt.Printf("%d: %s %+v\n", n, msg.MessageType(), msg)
		if open, ok := msg.(bgp.OpenMessage); ok {
			for _, c := range open.Capabilities {
				if _, ok := c.(bgp.FourOctetASN); ok {
					ctx.ASN4 = true
				}
			}
		}
		buf = tail
		n++
	}
	return nil
}

// decodeBMP treats buf as a concatenated stream of framed BMP
// messages, the shape a BMP monitoring station's TCP connection sees.
func decodeBMP(buf []byte) error {
	n := 0
	for len(buf) > 0 {
		tail, msg, err := bmp.Decode(buf)
		if err != nil {
			return fmt.Errorf("message %d: %w", n, err)
		}
		fmt.Printf("%d: %T %+v\n", n, msg, msg)
		buf = tail
		n++
	}
	return nil
}

// decodeFlow treats buf as one NetFlow v9/IPFIX export packet, the
// shape one UDP datagram carries.
func decodeFlow(buf []byte) error {
	pkt, err := flow.Decode(buf)
	if err != nil {
		return err
	}
	fmt.Printf("header: %+v\n", pkt.Header)
	for i, s := range pkt.Sets {
		fmt.Printf("set %d: %T %+v\n", i, s, s)
	}
	return nil
}
