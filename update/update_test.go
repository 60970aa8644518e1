package update_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/spgw/reactor"
	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/transport"
	"github.com/oxidecomputer/spgw/update"
	"github.com/oxidecomputer/spgw/wire"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func startReactor(t *testing.T) (*reactor.Handle, *transport.ChannelSocket) {
	t.Helper()
	sock := transport.NewChannelSocket(8)
	r, h := reactor.New(sock, reactor.DefaultConfig(), testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	discoverPkt := <-sock.Sent()
	_ = discoverPkt
	sock.Deliver(transport.Inbound{
		Kind:      transport.InboundSpResponse,
		MessageID: 1,
		Response:  wire.SpResponse{Kind: wire.RespDiscover, Discover: wire.DiscoverResponse{SpPort: wire.SpPortOne}},
	})

	t.Cleanup(cancel)
	return h, sock
}

func ackFor(kind wire.ResponseKind, messageID uint32) transport.Inbound {
	return transport.Inbound{Kind: transport.InboundSpResponse, MessageID: messageID, Response: wire.SpResponse{Kind: kind}}
}

func TestStartRejectsEmptyImage(t *testing.T) {
	h, _ := startReactor(t)
	err := update.Start(context.Background(), h, wire.SPItself, uuid.New(), 0, nil)
	require.ErrorIs(t, err, sperrors.ErrEmptyImage)
}

func TestStartRejectsNonzeroSlotForSpItself(t *testing.T) {
	h, _ := startReactor(t)
	err := update.Start(context.Background(), h, wire.SPItself, uuid.New(), 1, []byte{1})
	require.ErrorIs(t, err, sperrors.ErrInvalidSlotForComponent)
}

func TestStartStreamsChunksUntilComplete(t *testing.T) {
	h, sock := startReactor(t)
	image := make([]byte, wire.MinTrailingDataLen*2+37)
	for i := range image {
		image[i] = byte(i)
	}

	done := make(chan error, 1)
	go func() {
		done <- update.Start(context.Background(), h, wire.RoT, uuid.New(), 1, image)
	}()

	// UpdateStart ack.
	<-sock.Sent()
	sock.Deliver(ackFor(wire.RespUpdateStartAck, 2))

	// Three chunk RPCs expected (two full chunks plus a remainder).
	for i := 0; i < 3; i++ {
		<-sock.Sent()
		sock.Deliver(ackFor(wire.RespUpdateChunkAck, uint32(3+i)))
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("update.Start did not complete")
	}
}
