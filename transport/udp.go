package transport

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv6"

	"github.com/oxidecomputer/spgw/wire"
)

// recvBufferSize is sized generously above wire.MaxSerializedSize so a
// stray oversized datagram is still fully read (and then rejected by the
// codec) rather than silently truncated by the kernel.
const recvBufferSize = 2048

// UDPSocket is the production Socket: an IPv6 UDP socket that sends to a
// single SP and accepts datagrams only from that SP's address and port.
type UDPSocket struct {
	conn     *net.UDPConn
	pktConn  *ipv6.PacketConn
	peerAddr *net.UDPAddr
	ifIndex  int
}

// DialOptions configures NewUDPSocket.
type DialOptions struct {
	// LocalPort is the UDP port to bind locally; 0 picks an ephemeral port.
	LocalPort int
	// Interface, if set, becomes the socket's outgoing multicast interface.
	// It does not restrict which interface unicast traffic uses; for a
	// link-local peer that is selected by the peer address's Zone.
	Interface *net.Interface
}

// NewUDPSocket creates an unconnected UDP socket that sends to peer. peer
// must already carry a Zone (interface name or index) if it is a
// link-local address.
func NewUDPSocket(peer *net.UDPAddr, opts DialOptions) (*UDPSocket, error) {
	local := &net.UDPAddr{Port: opts.LocalPort}
	conn, err := net.ListenUDP("udp6", local)
	if err != nil {
		return nil, &NetworkError{Operation: "bind socket", Err: err}
	}

	pktConn := ipv6.NewPacketConn(conn)
	ifIndex := 0
	if opts.Interface != nil {
		ifIndex = opts.Interface.Index
		if err := pktConn.SetMulticastInterface(opts.Interface); err != nil {
			_ = conn.Close()
			return nil, &NetworkError{Operation: "bind interface", Err: err}
		}
	}

	if err := conn.SetReadBuffer(recvBufferSize * 8); err != nil {
		_ = conn.Close()
		return nil, &NetworkError{Operation: "configure socket", Err: err}
	}

	return &UDPSocket{
		conn:     conn,
		pktConn:  pktConn,
		peerAddr: peer,
		ifIndex:  ifIndex,
	}, nil
}

func (s *UDPSocket) Send(ctx context.Context, packet []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return &NetworkError{Operation: "set write deadline", Addr: s.peerAddr, Err: err}
		}
	}
	n, err := s.conn.WriteToUDP(packet, s.peerAddr)
	if err != nil {
		return &NetworkError{Operation: "send datagram", Addr: s.peerAddr, Err: err}
	}
	if n != len(packet) {
		return &NetworkError{Operation: "send datagram", Addr: s.peerAddr, Err: fmt.Errorf("partial write: %d/%d bytes", n, len(packet))}
	}
	return nil
}

// Recv returns the next well-formed message from the SP. Datagrams from
// any other peer, and datagrams that fail to decode, are skipped; only a
// socket-level failure or ctx being done ends the wait with an error.
func (s *UDPSocket) Recv(ctx context.Context) (Inbound, error) {
	for {
		select {
		case <-ctx.Done():
			return Inbound{}, ctx.Err()
		default:
		}
		if deadline, ok := ctx.Deadline(); ok {
			if err := s.conn.SetReadDeadline(deadline); err != nil {
				return Inbound{}, &NetworkError{Operation: "set read deadline", Err: err}
			}
		}

		buf := make([]byte, recvBufferSize)
		n, _, from, err := s.pktConn.ReadFrom(buf)
		if err != nil {
			return Inbound{}, &NetworkError{Operation: "receive datagram", Err: err}
		}
		if !s.fromPeer(from) {
			continue
		}

		msg, trailing, err := wire.DecodeMessage(buf[:n])
		if err != nil {
			continue
		}
		in, err := messageToInbound(msg, trailing)
		if err != nil {
			continue
		}
		return in, nil
	}
}

func (s *UDPSocket) fromPeer(addr net.Addr) bool {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return false
	}
	return udpAddr.IP.Equal(s.peerAddr.IP) && udpAddr.Port == s.peerAddr.Port
}

func (s *UDPSocket) Close() error {
	if err := s.conn.Close(); err != nil {
		return &NetworkError{Operation: "close socket", Err: err}
	}
	return nil
}

func messageToInbound(msg wire.Message, trailing []byte) (Inbound, error) {
	switch msg.Kind {
	case wire.KindSpResponse:
		return Inbound{Kind: InboundSpResponse, MessageID: msg.Header.MessageID, Response: msg.Response, ResponseTrailing: trailing}, nil
	case wire.KindSpRequest:
		switch msg.SpReqKind {
		case wire.SpReqSerialConsole:
			return Inbound{Kind: InboundSerialConsole, Console: msg.Console, ConsoleData: trailing}, nil
		case wire.SpReqHostPhase2Data:
			return Inbound{Kind: InboundHostPhase2Request, Phase2: msg.Phase2}, nil
		}
	}
	return Inbound{}, fmt.Errorf("transport: unsupported inbound message kind %d", msg.Kind)
}
