package relay

import "fmt"

// ProtocolViolation is the panic value raised when the slot handoff protocol
// is broken, for example when a slot is released twice. It is never recovered
// by the worker.
type ProtocolViolation struct {
	Op   string
	Slot string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("relay: protocol violation: %s on slot %q that is not busy", e.Op, e.Slot)
}
