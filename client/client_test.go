package client_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/spgw/client"
	"github.com/oxidecomputer/spgw/reactor"
	"github.com/oxidecomputer/spgw/transport"
	"github.com/oxidecomputer/spgw/wire"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func startClient(t *testing.T) (*client.Client, *transport.ChannelSocket) {
	t.Helper()
	sock := transport.NewChannelSocket(8)
	r, h := reactor.New(sock, reactor.DefaultConfig(), testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	<-sock.Sent()
	sock.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 1,
		Response:  wire.SpResponse{Kind: wire.RespDiscover, Discover: wire.DiscoverResponse{SpPort: wire.SpPortOne}},
	})

	t.Cleanup(cancel)
	return client.New(h), sock
}

func TestClientState(t *testing.T) {
	c, sock := startClient(t)

	done := make(chan struct{})
	var state wire.VersionedSpState
	var err error
	go func() {
		state, err = c.State(context.Background())
		close(done)
	}()

	<-sock.Sent()
	sock.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 2,
		Response: wire.SpResponse{
			Kind:  wire.RespSpState,
			State: wire.VersionedSpState{Version: 3, SerialNumber: "BRM1", ModelNumber: "913-1234", PowerState: wire.PowerStateA0},
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("State did not return")
	}
	require.NoError(t, err)
	require.Equal(t, uint32(3), state.Version)
	require.Equal(t, "BRM1", state.SerialNumber)
}

func TestClientSerialConsoleRoundTrip(t *testing.T) {
	c, sock := startClient(t)

	type attachResult struct {
		send *client.AttachedSerialConsoleSend
		recv *client.AttachedSerialConsoleRecv
		err  error
	}
	done := make(chan attachResult, 1)
	go func() {
		send, recv, err := c.SerialConsoleAttach(context.Background(), wire.SPItself)
		done <- attachResult{send, recv, err}
	}()

	<-sock.Sent() // attach RPC
	sock.Deliver(transport.Inbound{Kind: transport.InboundSpResponse, MessageID: 2, Response: wire.SpResponse{Kind: wire.RespSerialConsoleAttachAck}})

	res := <-done
	require.NoError(t, res.err)

	sock.Deliver(transport.Inbound{
		Kind:        transport.InboundSerialConsole,
		Console:     wire.SerialConsoleFrame{Component: wire.SPItself, Offset: 0},
		ConsoleData: []byte("hello"),
	})

	data, err := res.recv.Recv(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestClientSerialConsoleWriteChunksLargePayload(t *testing.T) {
	c, sock := startClient(t)

	type attachResult struct {
		send *client.AttachedSerialConsoleSend
		recv *client.AttachedSerialConsoleRecv
		err  error
	}
	attached := make(chan attachResult, 1)
	go func() {
		send, recv, err := c.SerialConsoleAttach(context.Background(), wire.SPItself)
		attached <- attachResult{send, recv, err}
	}()

	<-sock.Sent() // attach RPC
	sock.Deliver(transport.Inbound{Kind: transport.InboundSpResponse, MessageID: 2, Response: wire.SpResponse{Kind: wire.RespSerialConsoleAttachAck}})

	res := <-attached
	require.NoError(t, res.err)

	data := make([]byte, wire.MinTrailingDataLen*2+37)
	for i := range data {
		data[i] = byte(i)
	}

	written := make(chan struct {
		n   int
		err error
	}, 1)
	go func() {
		n, err := res.send.Write(context.Background(), data)
		written <- struct {
			n   int
			err error
		}{n, err}
	}()

	offset := uint64(0)
	messageID := uint32(3)
	// Three chunks expected: two full MinTrailingDataLen chunks plus a
	// 37-byte remainder.
	for i := 0; i < 3; i++ {
		<-sock.Sent()
		chunkLen := len(data) - int(offset)
		if chunkLen > wire.MinTrailingDataLen {
			chunkLen = wire.MinTrailingDataLen
		}
		offset += uint64(chunkLen)
		sock.Deliver(transport.Inbound{
			Kind:      transport.InboundSpResponse,
			MessageID: messageID,
			Response:  wire.SpResponse{Kind: wire.RespSerialConsoleWriteAck, ConsoleAccepted: offset},
		})
		messageID++
	}

	select {
	case res := <-written:
		require.NoError(t, res.err)
		require.Equal(t, len(data), res.n)
	case <-time.After(time.Second):
		t.Fatal("Write did not complete")
	}
}

func TestClientIgnitionState(t *testing.T) {
	c, sock := startClient(t)

	done := make(chan struct{})
	var st wire.IgnitionState
	var err error
	go func() {
		st, err = c.IgnitionState(context.Background(), 4)
		close(done)
	}()

	<-sock.Sent()
	sock.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 2,
		Response:  wire.SpResponse{Kind: wire.RespIgnitionState, IgnitionSt: wire.IgnitionState{Target: 4, Present: true, PowerOn: true}},
	})

	<-done
	require.NoError(t, err)
	require.True(t, st.Present)
	require.True(t, st.PowerOn)
}
