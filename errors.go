package smpplink

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// Codec level, fatal to a single read
	ErrMalformedPDU = errors.New("malformed PDU")

	// Single request failure, session stays bound
	ErrResponseTimeout = errors.New("response timeout")

	// Connection is lost, session is unbound
	ErrTransportClosed = errors.New("transport closed")

	// Session is closed while request is in flight
	ErrSessionClosed = errors.New("session closed")

	ErrBindRejected  = errors.New("bind rejected")
	ErrModeViolation = errors.New("bind mode violation")
	ErrInvalidState  = errors.New("invalid session state")
	ErrWindowFull    = errors.New("outstanding request window is full")
)

// BindRejectedError carries command_status of BIND_RESP
type BindRejectedError struct {
	Status uint32
}

func (e *BindRejectedError) Error() string {
	return fmt.Sprintf("bind rejected by SMSC, status 0x%08X (%s)", e.Status, StatusName(e.Status))
}

func (e *BindRejectedError) Is(target error) bool { return target == ErrBindRejected }

// ModeViolationError is raised locally, before anything is written to the wire
type ModeViolationError struct {
	Mode      ConnSMPPMode
	CommandID uint32
}

func (e *ModeViolationError) Error() string {
	return fmt.Sprintf("%s is not allowed for %s session", CmdName(e.CommandID), e.Mode)
}

func (e *ModeViolationError) Is(target error) bool { return target == ErrModeViolation }

// StatusError is a negative command_status returned by SMSC in a _RESP packet
type StatusError struct {
	CommandID uint32
	Status    uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status 0x%08X (%s)", CmdName(e.CommandID), e.Status, StatusName(e.Status))
}

// CommandStatus extracts SMSC status from err, if any
func CommandStatus(err error) (uint32, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	var be *BindRejectedError
	if errors.As(err, &be) {
		return be.Status, true
	}
	return 0, false
}
