package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
)

// TableJob is one (server, database, table) unit of work, derived by joining
// a binding line against the server list by server_ip.
type TableJob struct {
	ServerIP string
	User     string
	Driver   string
	Port     int
	Database string
	Table    string
}

// LoadTableJobs parses the binding file, one `server_ip:database:table` line
// per binding, preserving file order. A line whose server_ip has no matching
// server entry, or whose field count is wrong, is skipped with a warning;
// neither aborts the load. An unreadable file does.
func LoadTableJobs(path string, servers []ServerConfig) ([]TableJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "fail to read tables file %s", path)
	}
	defer f.Close()

	idx := ServerIndex(servers)

	var jobs []TableJob
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) != 3 {
			log.Warnf("skip malformed binding at %s:%d: want server_ip:database:table, got %q", path, lineNo, line)
			continue
		}

		server, ok := idx[parts[0]]
		if !ok {
			log.Warnf("cannot find '%s' in the server configurations, skip binding at %s:%d", parts[0], path, lineNo)
			continue
		}

		jobs = append(jobs, TableJob{
			ServerIP: server.ServerIP,
			User:     server.User,
			Driver:   server.Driver,
			Port:     server.Port,
			Database: parts[1],
			Table:    parts[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotatef(err, "fail to read tables file %s", path)
	}
	return jobs, nil
}
