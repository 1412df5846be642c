package hsm

import (
	"log/slog"
	"sync"
)

// Driver is the device transport. It blocks until the module answers;
// timeouts and reconnects are the driver's own business.
type Driver interface {
	// Transact sends cmd and stages the reply payload in replyBuf.
	Transact(cmd *Command, replyBuf []byte) (*Reply, error)
	Close() error
}

// Conn is anything that can run a transaction against the module.
type Conn interface {
	Transact(cmd *Command, replyBuf []byte) (*Reply, error)
}

// Session is the process-wide connection to the module. Open it once at
// start-up, inject it where transactions are needed and Close it on exit.
type Session struct {
	mu     sync.RWMutex
	driver Driver
	certs  *CertList
	closed bool
	logger *slog.Logger
}

// Open starts a session on the given driver. certs may be nil when the
// module does not enforce a certificate policy.
func Open(driver Driver, certs *CertList) *Session {
	s := &Session{
		driver: driver,
		certs:  certs,
		logger: slog.Default().With("component", "hsm_session"),
	}
	s.logger.Info("hsm session opened", "certs_present", certs != nil)
	return s
}

// Transact runs cmd on the module, attaching the session certificates.
func (s *Session) Transact(cmd *Command, replyBuf []byte) (*Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	if s.certs != nil {
		cmd.Certs = s.certs
		cmd.Flags |= FlagCertsPresent
	}
	return s.driver.Transact(cmd, replyBuf)
}

// Close tears the session down. Further transactions fail.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("hsm session closed")
	return s.driver.Close()
}
