package app

import (
	"context"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sqlship/sqlship/pkg/config"
	"github.com/sqlship/sqlship/pkg/creds"
	"github.com/sqlship/sqlship/pkg/fetcher"
	"github.com/sqlship/sqlship/pkg/forwarder"
	"github.com/sqlship/sqlship/pkg/metrics"
	"github.com/sqlship/sqlship/pkg/position_store"
	"github.com/sqlship/sqlship/pkg/sink"
)

// FetchFunc reads the full current row set of one job's table.
type FetchFunc func(ctx context.Context, job config.TableJob, password string) (fetcher.RowSet, error)

// JobResult is the per-table outcome of one run.
type JobResult struct {
	Job  config.TableJob
	Ship forwarder.ShipResult
	Err  error
}

// Server drives one shipping pass: ensure state entries exist, probe the
// sink, then fetch and forward each job in file order. One job's failure
// never aborts the jobs after it; an unreachable sink aborts before any job.
type Server struct {
	Cfg     *config.Config
	Servers map[string]config.ServerConfig
	Jobs    []config.TableJob

	Repo  position_store.Repo
	Creds creds.Provider
	Fetch FetchFunc

	ProbeFn    func(config.SinkConfig) error
	NewEmitter func(config.SinkConfig) (sink.Emitter, error)
	ID         sink.Identity
}

// NewServer loads both config sources and wires the default collaborators.
func NewServer(cfg *config.Config) (*Server, error) {
	servers, err := config.LoadServerConfigs(cfg.ServersFile)
	if err != nil {
		return nil, errors.Trace(err)
	}

	jobs, err := config.LoadTableJobs(cfg.TablesFile, servers)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(jobs) == 0 {
		log.Warnf("no resolvable table bindings in %s", cfg.TablesFile)
	}

	return &Server{
		Cfg:        cfg,
		Servers:    config.ServerIndex(servers),
		Jobs:       jobs,
		Repo:       position_store.NewFileRepo(cfg.StateFile),
		Creds:      creds.NewDefault(),
		Fetch:      fetcher.New(cfg.Fetch).Fetch,
		ProbeFn:    sink.Probe,
		NewEmitter: sink.NewEmitter,
		ID:         sink.LocalIdentity(),
	}, nil
}

// Run executes one full pass. The returned error is set only for conditions
// that abort the pass before any job runs; per-job failures are reported in
// the results.
func (s *Server) Run(ctx context.Context) ([]JobResult, error) {
	if err := s.Repo.Init(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := s.Repo.EnsureTables(s.Jobs); err != nil {
		return nil, errors.Trace(err)
	}

	if err := s.ProbeFn(s.Cfg.Sink); err != nil {
		return nil, errors.Trace(err)
	}

	emitter, err := s.NewEmitter(s.Cfg.Sink)
	if err != nil {
		return nil, errors.Annotatef(err, "fail to open sink connection")
	}
	defer emitter.Close()

	fw := forwarder.New(emitter, s.Repo, s.ID)

	results := make([]JobResult, 0, len(s.Jobs))
	for _, job := range s.Jobs {
		select {
		case <-ctx.Done():
			return results, errors.Trace(ctx.Err())
		default:
		}
		results = append(results, s.runJob(ctx, fw, job))
	}
	return results, nil
}

func (s *Server) runJob(ctx context.Context, fw *forwarder.Forwarder, job config.TableJob) JobResult {
	result := JobResult{Job: job}

	server, ok := s.Servers[job.ServerIP]
	if !ok {
		// jobs are derived from the server index, so this means the caller
		// mutated Jobs by hand
		result.Err = errors.Errorf("no server config for %s", job.ServerIP)
		metrics.JobCounter.WithLabelValues("failed").Add(1)
		return result
	}

	password, err := s.Creds.Password(server)
	if err != nil {
		log.Errorf("skip %s.%s on %s: %v", job.Database, job.Table, job.ServerIP, err)
		result.Err = errors.Trace(err)
		metrics.JobCounter.WithLabelValues("failed").Add(1)
		return result
	}

	rows, err := s.Fetch(ctx, job, password)
	if err != nil {
		log.Errorf("Error fetching data: %v", err)
		result.Err = errors.Trace(err)
		metrics.JobCounter.WithLabelValues("failed").Add(1)
		return result
	}

	if len(rows) == 0 {
		log.Infof("No new rows to log for %s from %s.", job.Table, job.ServerIP)
		result.Ship = forwarder.ShipResult{Skipped: true}
		metrics.JobCounter.WithLabelValues("empty").Add(1)
		return result
	}

	ship, err := fw.ForwardNew(job, rows)
	if err != nil {
		log.Errorf("fail to forward %s.%s on %s: %v", job.Database, job.Table, job.ServerIP, errors.ErrorStack(err))
		result.Err = errors.Trace(err)
		metrics.JobCounter.WithLabelValues("failed").Add(1)
		return result
	}

	result.Ship = ship
	if ship.Skipped {
		metrics.JobCounter.WithLabelValues("no_new_rows").Add(1)
	} else {
		metrics.JobCounter.WithLabelValues("shipped").Add(1)
	}
	return result
}

// FailedJobs counts results that carry an error. The process exits non-zero
// when any job failed.
func FailedJobs(results []JobResult) int {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	return failed
}
