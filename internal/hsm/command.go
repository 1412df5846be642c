// Package hsm talks to the hardware security module over a blocking
// request/response channel and exposes its random number generator.
package hsm

import "fmt"

// CommandKind identifies a module command.
type CommandKind uint32

// Module commands used by wallet initialization.
const (
	CmdGenerateRandom CommandKind = 0x1a
)

func (c CommandKind) String() string {
	switch c {
	case CmdGenerateRandom:
		return "GenerateRandom"
	default:
		return fmt.Sprintf("Cmd(%#x)", uint32(c))
	}
}

// CommandFlags modify how the module processes a command.
type CommandFlags uint32

// FlagCertsPresent tells the module a certificate list accompanies the command.
const FlagCertsPresent CommandFlags = 1 << 0

// CertList carries the certificates that authorize commands on the session.
type CertList struct {
	Certs [][]byte
}

// Command is a single request to the module.
type Command struct {
	Cmd      CommandKind
	LenBytes uint32
	Certs    *CertList
	Flags    CommandFlags
}

// Status is the module's result code for a command.
type Status uint32

// Module status codes.
const (
	StatusOK Status = iota
	StatusUnknownCommand
	StatusInvalidParameter
	StatusAccessDenied
	StatusHardwareFailed
	StatusNotAvailable
	StatusBufferFull
)

var statusText = map[Status]string{
	StatusOK:               "OK",
	StatusUnknownCommand:   "unknown command",
	StatusInvalidParameter: "invalid parameter",
	StatusAccessDenied:     "access denied by certificate policy",
	StatusHardwareFailed:   "hardware failure",
	StatusNotAvailable:     "module not available",
	StatusBufferFull:       "reply buffer full",
}

// String renders the module's diagnostic for the status.
func (s Status) String() string {
	if txt, ok := statusText[s]; ok {
		return txt
	}
	return fmt.Sprintf("unknown status %d", uint32(s))
}

// Reply is the module's answer to a Command. Data may alias transport
// buffers; callers must Release the reply once they are done with it.
type Reply struct {
	Status Status
	Data   []byte

	release  func()
	released bool
}

// NewReply builds a reply whose release hook runs once on Release.
func NewReply(status Status, data []byte, release func()) *Reply {
	return &Reply{Status: status, Data: data, release: release}
}

// Release wipes the reply data and returns any transport resources.
// It is safe to call more than once.
func (r *Reply) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	clear(r.Data)
	r.Data = nil
	if r.release != nil {
		r.release()
	}
}

// Released reports whether Release has been called.
func (r *Reply) Released() bool {
	return r.released
}
