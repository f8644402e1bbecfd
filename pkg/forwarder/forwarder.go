package forwarder

import (
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sqlship/sqlship/pkg/config"
	"github.com/sqlship/sqlship/pkg/fetcher"
	"github.com/sqlship/sqlship/pkg/metrics"
	"github.com/sqlship/sqlship/pkg/position_store"
	"github.com/sqlship/sqlship/pkg/sink"
)

// ShipResult reports what one forwarding pass did for a table.
type ShipResult struct {
	// NewRows is how many detail records were emitted.
	NewRows int
	// Offset is the stored offset after the pass.
	Offset int
	// Skipped is true when the scan held nothing past the stored offset.
	Skipped bool
}

// Forwarder turns the suffix of a table scan into syslog records and advances
// the stored offset by exactly the number of rows emitted. Emission is
// fire-and-forget, so a crash between emit and commit re-emits those rows on
// the next run; the offset itself never moves backwards.
type Forwarder struct {
	emitter sink.Emitter
	repo    position_store.Repo
	id      sink.Identity
}

func New(emitter sink.Emitter, repo position_store.Repo, id sink.Identity) *Forwarder {
	return &Forwarder{emitter: emitter, repo: repo, id: id}
}

// ForwardNew emits one summary record plus one record per row past the stored
// offset, then commits offset+n. With len(rows) at or below the offset it has
// no side effects at all.
func (f *Forwarder) ForwardNew(job config.TableJob, rows fetcher.RowSet) (ShipResult, error) {
	offset, _, err := f.repo.Get(job.Table)
	if err != nil {
		return ShipResult{}, errors.Trace(err)
	}

	if len(rows) <= offset {
		log.Infof("No new rows to log for %s from %s.", job.Table, job.ServerIP)
		return ShipResult{Offset: offset, Skipped: true}, nil
	}

	start := time.Now()
	newRows := rows[offset:]
	n := len(newRows)

	prefix := fmt.Sprintf("%s (%s) [%s] | %s | %s | ", f.id.Hostname, f.id.IP, job.ServerIP, job.Database, job.Table)

	f.emit(job, prefix+fmt.Sprintf("Rows Read: %d", n))
	for _, row := range newRows {
		f.emit(job, prefix+strings.Join(row, " | "))
	}

	if err := f.repo.Put(job.Table, offset+n); err != nil {
		return ShipResult{}, errors.Trace(err)
	}

	metrics.RowsShippedCounter.WithLabelValues(job.ServerIP, job.Database, job.Table).Add(float64(n))
	metrics.ForwardHistogram.WithLabelValues(job.ServerIP, job.Database, job.Table).Observe(time.Since(start).Seconds())
	log.Infof("%d new rows logged for %s from %s.", n, job.Table, job.ServerIP)
	return ShipResult{NewRows: n, Offset: offset + n}, nil
}

// emit sends one record and mirrors it to the local log for operator
// visibility. An emit failure is logged, never propagated: the transport is
// fire-and-forget and the offset commit must still happen.
func (f *Forwarder) emit(job config.TableJob, body string) {
	r := sink.Record{Time: time.Now(), Hostname: f.id.Hostname, Body: body}
	if err := f.emitter.Emit(r); err != nil {
		log.Warnf("emit failed for %s.%s: %v", job.Database, job.Table, err)
	}
	metrics.RecordsEmittedCounter.WithLabelValues(job.ServerIP, job.Database, job.Table).Add(1)
	log.Info(body)
}
