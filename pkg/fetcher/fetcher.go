package fetcher

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sqlship/sqlship/pkg/config"
	"github.com/sqlship/sqlship/pkg/metrics"
)

// RowSet is the full current content of one table, every column rendered as
// text, in the order the server returned the rows.
type RowSet [][]string

// Fetcher runs one unfiltered scan per job. The connection is opened inside
// Fetch and released before it returns, success or not.
type Fetcher struct {
	cfg config.FetchConfig
}

func New(cfg config.FetchConfig) *Fetcher {
	return &Fetcher{cfg: cfg}
}

// Fetch opens a connection to the job's server with the supplied password,
// reads the whole table and returns it. Any connectivity, auth or query error
// means "zero new rows available" to the caller, never a run abort.
func (f *Fetcher) Fetch(ctx context.Context, job config.TableJob, password string) (RowSet, error) {
	dsn, err := DSN(job, password, f.cfg.DialTimeoutDuration)
	if err != nil {
		return nil, errors.Trace(err)
	}

	db, err := sql.Open(job.Driver, dsn)
	if err != nil {
		return nil, errors.Annotatef(err, "fail to open %s database %s on %s", job.Driver, job.Database, job.ServerIP)
	}
	defer db.Close()

	queryCtx, cancel := context.WithTimeout(ctx, f.cfg.QueryTimeoutDuration)
	defer cancel()

	if err := db.PingContext(queryCtx); err != nil {
		return nil, errors.Annotatef(err, "fail to connect to %s on %s", job.Database, job.ServerIP)
	}

	start := time.Now()
	rows, err := Scan(queryCtx, db, job)
	if err != nil {
		return nil, errors.Trace(err)
	}

	metrics.ScanHistogram.WithLabelValues(job.ServerIP, job.Database, job.Table).Observe(time.Since(start).Seconds())
	metrics.ScanRowsCounter.WithLabelValues(job.ServerIP, job.Database, job.Table).Add(float64(len(rows)))
	log.Debugf("scanned %d rows from %s.%s on %s", len(rows), job.Database, job.Table, job.ServerIP)
	return rows, nil
}

// Scan reads every row of the job's table over an existing connection.
func Scan(ctx context.Context, db *sql.DB, job config.TableJob) (RowSet, error) {
	statement := fmt.Sprintf("SELECT * FROM %s", quoteTable(job.Driver, job.Table))

	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return nil, errors.Annotatef(err, "stmt: %s", statement)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Trace(err)
	}

	var result RowSet
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		scanArgs := make([]interface{}, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, errors.Annotatef(err, "stmt: %s", statement)
		}

		row := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Annotatef(err, "stmt: %s", statement)
	}
	return result, nil
}

// DSN builds the driver-specific connection string. The password stays out of
// every log line.
func DSN(job config.TableJob, password string, dialTimeout time.Duration) (string, error) {
	switch job.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?interpolateParams=true&timeout=%s&parseTime=false",
			job.User, password, job.ServerIP, job.Port, url.QueryEscape(job.Database), dialTimeout), nil
	case "sqlserver":
		query := url.Values{}
		query.Set("database", job.Database)
		query.Set("dial timeout", fmt.Sprintf("%d", int(dialTimeout.Seconds())))
		query.Set("TrustServerCertificate", "true")
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(job.User, password),
			Host:     fmt.Sprintf("%s:%d", job.ServerIP, job.Port),
			RawQuery: query.Encode(),
		}
		return u.String(), nil
	default:
		return "", errors.Errorf("unsupported driver %s", job.Driver)
	}
}

func quoteTable(driver string, table string) string {
	switch driver {
	case "mysql":
		return fmt.Sprintf("`%s`", table)
	case "sqlserver":
		return fmt.Sprintf("[%s]", table)
	default:
		return table
	}
}
