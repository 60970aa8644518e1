package reactor

import (
	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/transport"
	"github.com/oxidecomputer/spgw/wire"
)

// ConsoleDelivery is one relayed chunk of serial console output, handed to
// whoever holds the receive half of an attached session.
type ConsoleDelivery struct {
	Offset uint64
	Data   []byte
}

// consoleState tracks the single serial console session this reactor may
// have attached at any time; only one may be attached at once.
type consoleState struct {
	attached  bool
	key       uint64
	component wire.SpComponent
	forwardCh chan ConsoleDelivery
}

// attachSerialConsole begins relaying console traffic for component,
// failing if a session is already attached. The returned channel is closed
// when the session is detached.
func (r *Reactor) attachSerialConsole(component wire.SpComponent) (key uint64, rx <-chan ConsoleDelivery, err error) {
	if r.console.attached {
		return 0, nil, sperrors.ErrSerialConsoleAlreadyAttached
	}
	r.console.key++
	ch := make(chan ConsoleDelivery, serialConsoleChannelDepth)
	r.console.attached = true
	r.console.component = component
	r.console.forwardCh = ch
	return r.console.key, ch, nil
}

// detachSerialConsole ends the session identified by key, which must match
// the currently attached session (or detach everyone's session if key is
// nil, mirroring a forced detach from e.g. a reboot-triggered reset).
func (r *Reactor) detachSerialConsole(key *uint64) error {
	if !r.console.attached {
		return nil
	}
	if key != nil && *key != r.console.key {
		return sperrors.ErrBogusSerialConsoleState
	}
	close(r.console.forwardCh)
	// Keep the key counter so the next attach gets a fresh, larger key.
	r.console = consoleState{key: r.console.key}
	return nil
}

// forwardSerialConsole relays an unsolicited console frame to the attached
// receiver, if any, dropping it (with a metric and a log line) if nobody
// is listening or the receiver has fallen behind.
func (r *Reactor) forwardSerialConsole(in transport.Inbound) {
	if !r.console.attached {
		r.hooks.SerialConsoleDropped()
		r.log.Debug("dropping serial console frame: no receiver attached")
		return
	}
	select {
	case r.console.forwardCh <- ConsoleDelivery{Offset: in.Console.Offset, Data: in.ConsoleData}:
		r.hooks.SerialConsoleBytes("rx", len(in.ConsoleData))
	default:
		r.hooks.SerialConsoleDropped()
		r.log.Warn("dropping serial console frame: receiver channel full")
	}
}
