package sink

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/require"

	"github.com/sqlship/sqlship/pkg/config"
)

func TestRecordEncode(t *testing.T) {
	r := require.New(t)

	ts := time.Date(2024, time.March, 7, 9, 30, 0, 0, time.Local)
	rec := Record{Time: ts, Hostname: "shipper01", Body: "SalesDB | Orders | Rows Read: 3"}

	line := string(rec.Encode())
	r.True(strings.HasPrefix(line, "<14>"), line)
	r.Contains(line, ts.Format(time.Stamp))
	r.Contains(line, "shipper01")
	r.True(strings.HasSuffix(line, "SalesDB | Orders | Rows Read: 3"))
}

func TestRecordEncodeZeroTime(t *testing.T) {
	r := require.New(t)

	line := string(Record{Hostname: "h", Body: "b"}.Encode())
	r.True(strings.HasPrefix(line, "<14>"))
	r.NotContains(line, "Jan  1 00:00:00")
}

func TestLocalIdentity(t *testing.T) {
	r := require.New(t)

	id := LocalIdentity()
	r.NotEmpty(id.Hostname)
	r.NotEmpty(id.IP)
}

func sinkConfig(t *testing.T, protocol string, host string, port int) config.SinkConfig {
	t.Helper()
	cfg := config.SinkConfig{Host: host, Port: port, Protocol: protocol, ProbeTimeout: "500ms", ProbeAttempts: 1}
	require.NoError(t, cfg.ValidateAndSetDefault())
	return cfg
}

func TestProbe(t *testing.T) {
	r := require.New(t)

	t.Run("reachable", func(tt *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		r.NoError(err)
		defer ln.Close()

		port := ln.Addr().(*net.TCPAddr).Port
		r.NoError(Probe(sinkConfig(t, "udp", "127.0.0.1", port)))
	})

	t.Run("unreachable", func(tt *testing.T) {
		// grab a port and close it again so nothing listens there
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		r.NoError(err)
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		err = Probe(sinkConfig(t, "udp", "127.0.0.1", port))
		r.Error(err)
		r.Equal(ErrSinkUnreachable, errors.Cause(err))
	})
}

func TestProbeStopsAfterConfiguredAttempts(t *testing.T) {
	r := require.New(t)

	oldDial, oldSleep := probeDial, probeRetrySleep
	defer func() { probeDial, probeRetrySleep = oldDial, oldSleep }()
	probeRetrySleep = time.Millisecond

	dials := 0
	probeDial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		dials++
		return nil, errors.Errorf("connection refused")
	}

	cfg := sinkConfig(t, "udp", "10.0.0.9", 514)
	cfg.ProbeAttempts = 3

	err := Probe(cfg)
	r.Error(err)
	r.Equal(ErrSinkUnreachable, errors.Cause(err))
	r.Equal(3, dials)
}

func TestEmitterUDP(t *testing.T) {
	r := require.New(t)

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	r.NoError(err)
	defer pc.Close()

	port := pc.LocalAddr().(*net.UDPAddr).Port
	emitter, err := NewEmitter(sinkConfig(t, "udp", "127.0.0.1", port))
	r.NoError(err)
	defer emitter.Close()

	rec := Record{Time: time.Now(), Hostname: "shipper01", Body: "hello | world"}
	r.NoError(emitter.Emit(rec))

	r.NoError(pc.SetReadDeadline(time.Now().Add(2 * time.Second)))
	buf := make([]byte, 2048)
	n, _, err := pc.ReadFrom(buf)
	r.NoError(err)
	r.Equal(string(rec.Encode()), string(buf[:n]))
}

func TestEmitterTCPFramesRecords(t *testing.T) {
	r := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	r.NoError(err)
	defer ln.Close()

	type accepted struct {
		conn net.Conn
		err  error
	}
	acceptCh := make(chan accepted, 1)
	go func() {
		conn, err := ln.Accept()
		acceptCh <- accepted{conn: conn, err: err}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	emitter, err := NewEmitter(sinkConfig(t, "tcp", "127.0.0.1", port))
	r.NoError(err)
	defer emitter.Close()

	ts := time.Now()
	first := Record{Time: ts, Hostname: "shipper01", Body: "first"}
	second := Record{Time: ts, Hostname: "shipper01", Body: "second"}
	r.NoError(emitter.Emit(first))
	r.NoError(emitter.Emit(second))

	acc := <-acceptCh
	r.NoError(acc.err)
	defer acc.conn.Close()
	r.NoError(acc.conn.SetReadDeadline(time.Now().Add(2 * time.Second)))

	// a TCP stream has no datagram boundaries, each record must end in LF
	reader := bufio.NewReader(acc.conn)
	line, err := reader.ReadString('\n')
	r.NoError(err)
	r.Equal(string(first.Encode())+"\n", line)

	line, err = reader.ReadString('\n')
	r.NoError(err)
	r.Equal(string(second.Encode())+"\n", line)
}
