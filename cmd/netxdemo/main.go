// Command netxdemo exercises the transport core against a loopback sender:
// it binds a client socket, performs an active open completed inline by the
// loopback path, and joins a multicast group.
package main

import (
	"net/netip"
	"os"
	"time"

	"log/slog"

	"github.com/pkg/errors"
	"github.com/soypat/seqs"
	"github.com/tangshiaw/netx"
	"github.com/tangshiaw/netx/header"
	"github.com/tangshiaw/netx/pool"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	if err := run(logger); err != nil {
		logger.Error("netxdemo", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	iface := &netx.Interface{
		Name: "lo0",
		Addr: netip.AddrFrom4([4]byte{127, 0, 0, 1}),
		MTU:  1500,
	}

	// The sender peeks at each opening segment and completes the handshake
	// inline, standing in for a remote peer on the same host.
	var client *netx.TCPSocket
	sender := netx.SenderFunc(func(b *pool.Buffer, dst netip.Addr, tos, ttl, protocol uint8, allowFragment bool) {
		defer b.Free()
		if protocol != header.IPProtoTCP {
			logger.Info("loopback", slog.String("dst", dst.String()), slog.Int("proto", int(protocol)))
			return
		}
		hdr := header.DecodeTCPHeader(b.Bytes())
		logger.Info("loopback", slog.String("tcp", hdr.String()))
		if hdr.Flags() == seqs.FlagSYN && client != nil {
			client.FinishConnect()
		}
	})

	stack, err := netx.NewStack(netx.StackConfig{
		Router: netx.RouterFunc(func(dst netip.Addr) (netx.Route, error) {
			return netx.Route{Iface: iface, NextHop: dst}, nil
		}),
		Sender: sender,
		Pool:   pool.New(8, 1536, 64),
		Logger: logger,
	})
	if err != nil {
		return errors.Wrap(err, "creating stack")
	}

	client = netx.NewTCPSocket(stack, netx.TCPSocketConfig{})
	if err := client.Bind(netx.PortAny, 0); err != nil {
		return errors.Wrap(err, "binding client")
	}
	if err := client.Connect(netip.AddrFrom4([4]byte{127, 0, 0, 1}), 80, 5*time.Second); err != nil {
		return errors.Wrap(err, "connecting")
	}
	logger.Info("connected",
		slog.Int("port", int(client.Port())),
		slog.String("state", client.State().String()),
	)

	if err := stack.JoinGroup(netip.AddrFrom4([4]byte{239, 0, 0, 1})); err != nil {
		return errors.Wrap(err, "joining group")
	}
	active, total := stack.ConnectionCounts()
	logger.Info("done",
		slog.Uint64("active", uint64(active)),
		slog.Uint64("total", uint64(total)),
		slog.Uint64("reports", uint64(stack.ReportsSent())),
	)
	return nil
}
