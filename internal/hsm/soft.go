package hsm

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
)

// SoftModule is a software stand-in for the hardware module. It answers
// GenerateRandom from an io.Reader and is meant for development
// deployments and tests, never for custody of real funds.
type SoftModule struct {
	mu     sync.Mutex
	rand   io.Reader
	closed bool
}

// NewSoftModule returns a module backed by r, or crypto/rand when r is nil.
func NewSoftModule(r io.Reader) *SoftModule {
	if r == nil {
		r = rand.Reader
	}
	return &SoftModule{rand: r}
}

// Transact implements Driver.
func (m *SoftModule) Transact(cmd *Command, replyBuf []byte) (*Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("soft module: connection closed")
	}

	switch cmd.Cmd {
	case CmdGenerateRandom:
		if int(cmd.LenBytes) > len(replyBuf) {
			return NewReply(StatusBufferFull, nil, nil), nil
		}
		data := replyBuf[:cmd.LenBytes]
		if _, err := io.ReadFull(m.rand, data); err != nil {
			clear(data)
			return nil, fmt.Errorf("soft module: read rng: %w", err)
		}
		return NewReply(StatusOK, data, nil), nil
	default:
		return NewReply(StatusUnknownCommand, nil, nil), nil
	}
}

// Close implements Driver.
func (m *SoftModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
