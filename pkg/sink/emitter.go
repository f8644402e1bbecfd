package sink

import (
	"net"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sqlship/sqlship/pkg/config"
	"github.com/sqlship/sqlship/pkg/utils/retry"
)

// ErrSinkUnreachable aborts the whole run before any job is processed.
var ErrSinkUnreachable = errors.New("cannot contact the syslog server")

// Emitter ships records to the collector. The transport is fire-and-forget:
// a nil return means the write was handed to the network, not that the
// collector accepted it.
type Emitter interface {
	Emit(r Record) error
	Close() error
}

type netEmitter struct {
	conn         net.Conn
	writeTimeout time.Duration
	// framed adds the RFC 6587 LF trailer; a TCP stream has no datagram
	// boundaries, so collectors split records on newline.
	framed bool
}

// NewEmitter dials the configured collector endpoint once and reuses the
// connection for every record of the run.
func NewEmitter(cfg config.SinkConfig) (Emitter, error) {
	conn, err := net.DialTimeout(cfg.Protocol, cfg.Addr(), cfg.ProbeTimeoutDuration)
	if err != nil {
		return nil, errors.Annotatef(err, "fail to dial %s sink %s", cfg.Protocol, cfg.Addr())
	}
	return &netEmitter{
		conn:         conn,
		writeTimeout: cfg.ProbeTimeoutDuration,
		framed:       cfg.Protocol == "tcp",
	}, nil
}

func (e *netEmitter) Emit(r Record) error {
	if e.writeTimeout > 0 {
		// a hung collector must not stall the whole run
		if err := e.conn.SetWriteDeadline(time.Now().Add(e.writeTimeout)); err != nil {
			return errors.Trace(err)
		}
	}
	payload := r.Encode()
	if e.framed {
		payload = append(payload, '\n')
	}
	if _, err := e.conn.Write(payload); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (e *netEmitter) Close() error {
	return errors.Trace(e.conn.Close())
}

// Tests swap the dialer and shrink the backoff.
var (
	probeDial       = net.DialTimeout
	probeRetrySleep = time.Second
)

// Probe checks sink reachability with a bounded TCP connect before any job
// runs, retrying with backoff up to the configured attempts.
func Probe(cfg config.SinkConfig) error {
	addr := cfg.Addr()
	err := retry.Do(func() error {
		conn, err := probeDial("tcp", addr, cfg.ProbeTimeoutDuration)
		if err != nil {
			log.Warnf("syslog server probe of %s failed: %v", addr, err)
			return errors.Trace(err)
		}
		conn.Close()
		return nil
	}, cfg.ProbeAttempts, probeRetrySleep)
	if err != nil {
		return errors.Annotatef(ErrSinkUnreachable, "%s after %d attempts", addr, cfg.ProbeAttempts)
	}
	return nil
}
