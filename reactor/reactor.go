// Package reactor implements the single-threaded protocol core: one
// goroutine owns the SP socket, the outstanding message id, the attached
// serial console, and the most recently observed host phase-2 request.
// Every other package talks to it only through a Handle's command channel,
// mirroring the original's single tokio task plus bounded mpsc command
// channel — here realized with a buffered Go channel of command values and
// a per-call reply channel standing in for a oneshot.
package reactor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/spbackoff"
	"github.com/oxidecomputer/spgw/spmetrics"
	"github.com/oxidecomputer/spgw/transport"
	"github.com/oxidecomputer/spgw/wire"
)

// cmdQueueDepth bounds how many in-flight calls may be queued against a
// reactor at once; this core makes no pipelining promise, so a deep queue
// only buys callers patience, not throughput.
const cmdQueueDepth = 8

// serialConsoleChannelDepth bounds how many not-yet-delivered console
// frames a Recv caller may fall behind by before frames start dropping.
const serialConsoleChannelDepth = 32

// discoveryIdleInterval re-runs discovery if nothing — no command, no
// inbound message — has happened in this long, so a gateway restarted
// behind an SP that later changes address eventually notices.
const discoveryIdleInterval = 60 * time.Second

// initialDiscoveryRetryInterval is how long initialDiscovery waits between
// Discover attempts before the SP has ever answered.
const initialDiscoveryRetryInterval = 1 * time.Second

// Config controls attempt budgets and timeouts. Zero value is invalid;
// use DefaultConfig as a starting point.
type Config struct {
	MaxAttempts       int
	PerAttemptTimeout time.Duration
}

// DefaultConfig matches the budget used for ordinary (non-self-reset) RPCs.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       spbackoff.DefaultMaxAttempts,
		PerAttemptTimeout: 3 * time.Second,
	}
}

// Reactor owns all mutable protocol state. It must only ever be touched
// from the goroutine running Run.
type Reactor struct {
	socket transport.Socket
	cfg    Config
	log    *logrus.Entry
	hooks  spmetrics.Hooks

	cmds    chan command
	inbound chan transport.Inbound
	pumpErr chan error

	messageID  uint32
	discovered bool
	spPort     wire.SpPort

	console consoleState

	mostRecentPhase2 *wire.HostPhase2DataRequest

	// lastResponseTrailing is set by rpcCallOneAttempt immediately before
	// returning a successful response, carrying that response's raw TLV
	// trailing bytes up to rpcCall's caller.
	lastResponseTrailing []byte
}

// Handle is the client-visible handle to a running Reactor: it owns only
// the command channel, never the reactor's state.
type Handle struct {
	cmds chan command
}

// New constructs a Reactor bound to socket. Call Run to start it, then use
// the returned Handle to issue commands. hooks may be spmetrics.NopHooks.
func New(socket transport.Socket, cfg Config, log *logrus.Entry, hooks spmetrics.Hooks) (*Reactor, *Handle) {
	if hooks == nil {
		hooks = spmetrics.NopHooks
	}
	cmds := make(chan command, cmdQueueDepth)
	r := &Reactor{
		socket:  socket,
		cfg:     cfg,
		log:     log,
		hooks:   hooks,
		cmds:    cmds,
		inbound: make(chan transport.Inbound, serialConsoleChannelDepth),
		pumpErr: make(chan error, 1),
	}
	return r, &Handle{cmds: cmds}
}

// Run drives the reactor until ctx is canceled. It performs initial
// discovery, then services commands and inbound messages until shutdown.
func (r *Reactor) Run(ctx context.Context) {
	go r.pumpInbound(ctx)

	if !r.initialDiscovery(ctx) {
		return
	}

	idle := time.NewTicker(discoveryIdleInterval)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			r.drainWithError(sperrors.ErrShuttingDown)
			return
		case err := <-r.pumpErr:
			r.log.WithError(err).Error("socket recv pump died, shutting down reactor")
			r.drainWithError(err)
			return
		case cmd := <-r.cmds:
			idle.Reset(discoveryIdleInterval)
			cmd.run(ctx, r)
		case in := <-r.inbound:
			idle.Reset(discoveryIdleInterval)
			r.handleUnsolicited(in)
		case <-idle.C:
			r.discover(ctx)
		}
	}
}

// pumpInbound continuously reads from the socket and forwards results onto
// r.inbound, isolating blocking I/O from the state-owning goroutine. It
// never touches Reactor state directly.
func (r *Reactor) pumpInbound(ctx context.Context) {
	for {
		in, err := r.socket.Recv(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			r.log.WithError(err).Warn("socket recv failed")
			select {
			case r.pumpErr <- err:
			default:
			}
			return
		}
		select {
		case r.inbound <- in:
		case <-ctx.Done():
			return
		}
	}
}

// initialDiscovery retries Discover, waiting one second after each failed
// attempt and failing every command that arrives during that wait with
// ErrNoSpDiscovered, until either discovery succeeds or ctx is done.
func (r *Reactor) initialDiscovery(ctx context.Context) bool {
	for {
		if r.discover(ctx) {
			return true
		}
		wait := time.NewTimer(initialDiscoveryRetryInterval)
	waiting:
		for {
			select {
			case <-ctx.Done():
				wait.Stop()
				return false
			case cmd := <-r.cmds:
				cmd.fail(sperrors.ErrNoSpDiscovered)
			case in := <-r.inbound:
				_ = in // no SP address yet confirmed; any stray datagram is ignored
			case <-wait.C:
				break waiting
			}
		}
	}
}

// discover sends a single Discover RPC and records the SP's reported port
// on success.
func (r *Reactor) discover(ctx context.Context) bool {
	resp, _, err := r.rpcCall(ctx, discoverRequest(), nil)
	if err != nil {
		r.log.WithError(err).Debug("discover failed")
		return false
	}
	disc, err := resp.ExpectDiscover()
	if err != nil {
		r.log.WithError(err).Warn("discover returned unexpected response type")
		return false
	}
	r.spPort = disc.SpPort
	r.discovered = true
	r.hooks.Discovered()
	return true
}

func discoverRequest() wire.MgsRequest {
	return wire.MgsRequest{Kind: wire.ReqDiscover}
}

// drainWithError fails every command still queued, used on shutdown.
func (r *Reactor) drainWithError(err error) {
	for {
		select {
		case cmd := <-r.cmds:
			cmd.fail(err)
		default:
			return
		}
	}
}

// handleUnsolicited processes an inbound message that arrived while no RPC
// was in flight: a late SP response (logged and dropped), or a serial
// console / host phase-2 message forwarded to whoever is listening.
func (r *Reactor) handleUnsolicited(in transport.Inbound) {
	switch in.Kind {
	case transport.InboundSpResponse:
		r.log.WithField("message_id", in.MessageID).Warn("received unexpected late SP response")
	case transport.InboundSerialConsole:
		r.forwardSerialConsole(in)
	case transport.InboundHostPhase2Request:
		r.setMostRecentHostPhase2Request(in.Phase2)
	}
}

func (r *Reactor) setMostRecentHostPhase2Request(req wire.HostPhase2DataRequest) {
	r.mostRecentPhase2 = &req
	r.hooks.HostPhase2Requested()
}

// nextMessageID returns the next message id to stamp an outgoing request
// with, incrementing the counter exactly once per logical RPC call.
func (r *Reactor) nextMessageID() uint32 {
	r.messageID++
	return r.messageID
}
