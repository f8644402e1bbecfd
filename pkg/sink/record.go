package sink

import (
	"fmt"
	"net"
	"os"
	"time"
)

// priUserInfo is facility user(1)<<3 | severity informational(6).
const priUserInfo = 14

// Record is one syslog message bound for the collector.
type Record struct {
	Time     time.Time
	Hostname string
	Body     string
}

// Encode renders the RFC3164 wire line: <PRI>TIMESTAMP HOSTNAME BODY.
func (r Record) Encode() []byte {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return []byte(fmt.Sprintf("<%d>%s %s %s", priUserInfo, ts.Format(time.Stamp), r.Hostname, r.Body))
}

// Identity is the local host information stamped on every forwarded record.
type Identity struct {
	Hostname string
	IP       string
}

// LocalIdentity resolves the local hostname and one of its addresses.
// Resolution failures degrade to loopback rather than fail the run.
func LocalIdentity() Identity {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	ip := "127.0.0.1"
	if addrs, err := net.LookupHost(hostname); err == nil && len(addrs) > 0 {
		ip = addrs[0]
	}
	return Identity{Hostname: hostname, IP: ip}
}
