package hsm

import (
	"log/slog"
	"sync"
)

// MaxRandomBytes is the capacity of the scratch buffer that stages random
// data returned by the module. Larger requests are rejected up front.
const MaxRandomBytes = 256

// EntropySource reads random bytes from the module's hardware RNG.
// Calls are serialized because they share one scratch buffer.
type EntropySource struct {
	mu      sync.Mutex
	conn    Conn
	scratch [MaxRandomBytes]byte
	logger  *slog.Logger
}

// NewEntropySource returns an EntropySource that transacts over conn.
func NewEntropySource(conn Conn) *EntropySource {
	return &EntropySource{
		conn:   conn,
		logger: slog.Default().With("component", "hsm_random"),
	}
}

// GenerateRandom fills dst with exactly len(dst) bytes from the module in a
// single transaction. It does not retry.
func (s *EntropySource) GenerateRandom(dst []byte) error {
	if len(dst) > len(s.scratch) {
		s.logger.Error("buffer_len too large", "requested", len(dst), "capacity", len(s.scratch))
		return ErrBufferTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer clear(s.scratch[:])

	cmd := &Command{
		Cmd:      CmdGenerateRandom,
		LenBytes: uint32(len(dst)),
	}
	reply, err := s.conn.Transact(cmd, s.scratch[:])
	if err != nil {
		s.logger.Error("transact failed", "error", err)
		return &TransportError{Cmd: cmd.Cmd, Err: err}
	}
	defer reply.Release()

	if reply.Status != StatusOK {
		s.logger.Error("transact not ok", "status", uint32(reply.Status), "message", reply.Status.String())
		return &StatusError{Cmd: cmd.Cmd, Status: reply.Status, Message: reply.Status.String()}
	}

	if len(reply.Data) != len(dst) {
		s.logger.Error("invalid data len", "want", len(dst), "got", len(reply.Data))
		return &LengthError{Want: len(dst), Got: len(reply.Data)}
	}

	copy(dst, reply.Data)
	return nil
}
