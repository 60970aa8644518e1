package reactor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/spmetrics"
	"github.com/oxidecomputer/spgw/transport"
	"github.com/oxidecomputer/spgw/wire"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// startReactor wires a Reactor to a ChannelSocket, runs it in the
// background, and completes initial discovery before returning.
func startReactor(t *testing.T, cfg Config) (*Handle, *transport.ChannelSocket, context.CancelFunc) {
	t.Helper()
	socket := transport.NewChannelSocket(8)
	r, h := New(socket, cfg, testLogger(), spmetrics.NopHooks)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	// Initial discovery consumes message id 1.
	<-socket.Sent()
	socket.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 1,
		Response: wire.SpResponse{
			Kind:     wire.RespDiscover,
			Discover: wire.DiscoverResponse{SpPort: wire.SpPortOne},
		},
	})

	t.Cleanup(cancel)
	return h, socket, cancel
}

func TestInitialDiscoveryThenRpc(t *testing.T) {
	h, socket, _ := startReactor(t, Config{MaxAttempts: 3, PerAttemptTimeout: 200 * time.Millisecond})

	done := make(chan struct{})
	var resp wire.SpResponse
	var err error
	go func() {
		resp, _, err = h.Rpc(context.Background(), wire.MgsRequest{Kind: wire.ReqSpState})
		close(done)
	}()

	packet := <-socket.Sent()
	require.NotEmpty(t, packet)
	socket.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 2,
		Response: wire.SpResponse{
			Kind:  wire.RespSpState,
			State: wire.VersionedSpState{Version: 7},
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rpc did not complete")
	}
	require.NoError(t, err)
	state, err := resp.ExpectSpState()
	require.NoError(t, err)
	require.Equal(t, uint32(7), state.Version)
}

// TestOutOfBandMessageStormDoesNotResetAttemptTimeout is the critical
// invariant: a flood of unsolicited host phase-2 requests arriving during
// an RPC attempt must not keep extending that attempt's deadline. Without
// this guarantee a misbehaving or chatty SP could make an attempt (and so
// the whole call) hang indefinitely.
func TestOutOfBandMessageStormDoesNotResetAttemptTimeout(t *testing.T) {
	perAttempt := 200 * time.Millisecond
	h, socket, _ := startReactor(t, Config{MaxAttempts: 1, PerAttemptTimeout: perAttempt})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				socket.Deliver(transport.Inbound{
					Kind:   transport.InboundHostPhase2Request,
					Phase2: wire.HostPhase2DataRequest{Offset: 0},
				})
			}
		}
	}()

	start := time.Now()
	_, _, err := h.Rpc(context.Background(), wire.MgsRequest{Kind: wire.ReqSpState})
	elapsed := time.Since(start)

	require.Error(t, err)
	var exhausted *sperrors.ErrExhaustedAttempts
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 1, exhausted.Attempts)
	// The attempt must time out close to perAttempt despite the storm, not
	// hang well past it.
	require.Less(t, elapsed, perAttempt+150*time.Millisecond)
	require.GreaterOrEqual(t, elapsed, perAttempt-20*time.Millisecond)
}

func TestSpBusyAbsorbedWithoutConsumingAttemptBudget(t *testing.T) {
	h, socket, _ := startReactor(t, Config{MaxAttempts: 1, PerAttemptTimeout: 2 * time.Second})

	done := make(chan struct{})
	var err error
	go func() {
		_, _, err = h.Rpc(context.Background(), wire.MgsRequest{Kind: wire.ReqSpState})
		close(done)
	}()

	// First send: respond busy.
	<-socket.Sent()
	socket.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 2,
		Response:  wire.SpResponse{Kind: wire.RespError, Err: wire.SpError{Code: wire.SpErrorBusy}},
	})

	// Busy triggers a resend of the same message id; respond for real this
	// time.
	<-socket.Sent()
	socket.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 2,
		Response:  wire.SpResponse{Kind: wire.RespSpState, State: wire.VersionedSpState{Version: 1}},
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rpc did not complete")
	}
	require.NoError(t, err)
}

func TestMismatchedMessageIDFailsAttemptNotCall(t *testing.T) {
	h, socket, _ := startReactor(t, Config{MaxAttempts: 2, PerAttemptTimeout: 300 * time.Millisecond})

	done := make(chan struct{})
	var err error
	go func() {
		_, _, err = h.Rpc(context.Background(), wire.MgsRequest{Kind: wire.ReqSpState})
		close(done)
	}()

	<-socket.Sent() // attempt 1
	socket.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 999, // stale id from a previous call
		Response:  wire.SpResponse{Kind: wire.RespSpState},
	})

	<-socket.Sent() // attempt 2 (resend)
	socket.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 2,
		Response:  wire.SpResponse{Kind: wire.RespSpState, State: wire.VersionedSpState{Version: 3}},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rpc did not complete")
	}
	require.NoError(t, err)
}

func TestSerialConsoleAttachForwardsFrames(t *testing.T) {
	h, socket, _ := startReactor(t, Config{MaxAttempts: 2, PerAttemptTimeout: 300 * time.Millisecond})

	attachDone := make(chan struct{})
	var key uint64
	var rx <-chan ConsoleDelivery
	var attachErr error
	go func() {
		key, rx, attachErr = h.SerialConsoleAttach(context.Background(), wire.SPItself)
		close(attachDone)
	}()

	<-socket.Sent()
	socket.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 2,
		Response:  wire.SpResponse{Kind: wire.RespSerialConsoleAttachAck},
	})

	select {
	case <-attachDone:
	case <-time.After(time.Second):
		t.Fatal("attach did not complete")
	}
	require.NoError(t, attachErr)
	require.Equal(t, uint64(1), key)

	socket.Deliver(transport.Inbound{
		Kind:        transport.InboundSerialConsole,
		Console:     wire.SerialConsoleFrame{Component: wire.SPItself, Offset: 0},
		ConsoleData: []byte("hello"),
	})

	select {
	case frame := <-rx:
		require.Equal(t, []byte("hello"), frame.Data)
	case <-time.After(time.Second):
		t.Fatal("did not receive forwarded console frame")
	}
}

func TestSerialConsoleAttachTwiceFails(t *testing.T) {
	h, socket, _ := startReactor(t, Config{MaxAttempts: 2, PerAttemptTimeout: 300 * time.Millisecond})

	go func() {
		<-socket.Sent()
		socket.Deliver(transport.Inbound{
			Kind:      transport.InboundSpResponse,
			MessageID: 2,
			Response:  wire.SpResponse{Kind: wire.RespSerialConsoleAttachAck},
		})
	}()
	_, _, err := h.SerialConsoleAttach(context.Background(), wire.SPItself)
	require.NoError(t, err)

	_, _, err = h.SerialConsoleAttach(context.Background(), wire.SPItself)
	require.ErrorIs(t, err, sperrors.ErrSerialConsoleAlreadyAttached)
}
