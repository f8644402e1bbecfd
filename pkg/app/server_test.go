package app

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/require"

	"github.com/sqlship/sqlship/pkg/config"
	"github.com/sqlship/sqlship/pkg/creds"
	"github.com/sqlship/sqlship/pkg/fetcher"
	"github.com/sqlship/sqlship/pkg/position_store"
	"github.com/sqlship/sqlship/pkg/sink"
)

type nopEmitter struct {
	records int
}

func (e *nopEmitter) Emit(r sink.Record) error {
	e.records++
	return nil
}

func (e *nopEmitter) Close() error { return nil }

func testServer(t *testing.T) (*Server, *nopEmitter) {
	t.Helper()

	servers := map[string]config.ServerConfig{
		"10.0.0.1": {ServerIP: "10.0.0.1", User: "svc", Driver: "sqlserver", Port: 1433},
	}
	jobs := []config.TableJob{
		{ServerIP: "10.0.0.1", User: "svc", Driver: "sqlserver", Port: 1433, Database: "SalesDB", Table: "Orders"},
		{ServerIP: "10.0.0.1", User: "svc", Driver: "sqlserver", Port: 1433, Database: "SalesDB", Table: "Refunds"},
	}

	emitter := &nopEmitter{}
	s := &Server{
		Cfg:     &config.Config{},
		Servers: servers,
		Jobs:    jobs,
		Repo:    position_store.NewMemRepo(),
		Creds:   creds.Static{"10.0.0.1": "s3cret"},
		ProbeFn: func(config.SinkConfig) error { return nil },
		NewEmitter: func(config.SinkConfig) (sink.Emitter, error) {
			return emitter, nil
		},
		ID: sink.Identity{Hostname: "shipper01", IP: "192.168.1.5"},
	}
	return s, emitter
}

func staticRows(n int) fetcher.RowSet {
	rows := make(fetcher.RowSet, n)
	for i := range rows {
		rows[i] = []string{"x"}
	}
	return rows
}

func TestRunHappyPath(t *testing.T) {
	r := require.New(t)
	s, emitter := testServer(t)

	s.Fetch = func(ctx context.Context, job config.TableJob, password string) (fetcher.RowSet, error) {
		r.Equal("s3cret", password)
		if job.Table == "Orders" {
			return staticRows(8), nil
		}
		return staticRows(2), nil
	}

	results, err := s.Run(context.Background())
	r.NoError(err)
	r.Len(results, 2)
	r.Equal(0, FailedJobs(results))

	// 8 rows + summary, 2 rows + summary
	r.Equal(12, emitter.records)

	state, err := s.Repo.All()
	r.NoError(err)
	r.Equal(map[string]int{"Orders": 8, "Refunds": 2}, state)
}

func TestRunSinkUnreachable(t *testing.T) {
	r := require.New(t)
	s, emitter := testServer(t)

	// prior state that must not move
	r.NoError(s.Repo.EnsureTables(s.Jobs))
	r.NoError(s.Repo.Put("Orders", 5))

	fetchCalled := false
	s.Fetch = func(ctx context.Context, job config.TableJob, password string) (fetcher.RowSet, error) {
		fetchCalled = true
		return staticRows(8), nil
	}
	s.ProbeFn = func(config.SinkConfig) error {
		return errors.Annotatef(sink.ErrSinkUnreachable, "10.0.0.9:514 after 3 attempts")
	}

	_, err := s.Run(context.Background())
	r.Error(err)
	r.Equal(sink.ErrSinkUnreachable, errors.Cause(err))

	// no job processed, no offset mutated
	r.False(fetchCalled)
	r.Equal(0, emitter.records)
	offset, _, err := s.Repo.Get("Orders")
	r.NoError(err)
	r.Equal(5, offset)
}

func TestRunOneJobFailureDoesNotAbortOthers(t *testing.T) {
	r := require.New(t)
	s, _ := testServer(t)

	s.Fetch = func(ctx context.Context, job config.TableJob, password string) (fetcher.RowSet, error) {
		if job.Table == "Orders" {
			return nil, errors.New("login failed for user 'svc'")
		}
		return staticRows(3), nil
	}

	results, err := s.Run(context.Background())
	r.NoError(err)
	r.Len(results, 2)
	r.Equal(1, FailedJobs(results))
	r.Error(results[0].Err)
	r.NoError(results[1].Err)

	state, err := s.Repo.All()
	r.NoError(err)
	r.Equal(0, state["Orders"])
	r.Equal(3, state["Refunds"])
}

func TestRunEmptyFetchSkips(t *testing.T) {
	r := require.New(t)
	s, emitter := testServer(t)

	s.Fetch = func(ctx context.Context, job config.TableJob, password string) (fetcher.RowSet, error) {
		return nil, nil
	}

	results, err := s.Run(context.Background())
	r.NoError(err)
	r.Equal(0, FailedJobs(results))
	r.True(results[0].Ship.Skipped)
	r.Equal(0, emitter.records)
}

func TestRunMissingCredential(t *testing.T) {
	r := require.New(t)
	s, _ := testServer(t)

	s.Creds = creds.Static{}
	s.Fetch = func(ctx context.Context, job config.TableJob, password string) (fetcher.RowSet, error) {
		t.Fatal("fetch must not run without a credential")
		return nil, nil
	}

	results, err := s.Run(context.Background())
	r.NoError(err)
	r.Equal(2, FailedJobs(results))
}

func TestRunCancelledContext(t *testing.T) {
	r := require.New(t)
	s, _ := testServer(t)

	s.Fetch = func(ctx context.Context, job config.TableJob, password string) (fetcher.RowSet, error) {
		return staticRows(1), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx)
	r.Error(err)
}
