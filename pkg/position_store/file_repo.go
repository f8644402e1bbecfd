/*
 *
 * // Copyright 2019 , Beijing Mobike Technology Co., Ltd.
 * //
 * // Licensed under the Apache License, Version 2.0 (the "License");
 * // you may not use this file except in compliance with the License.
 * // You may obtain a copy of the License at
 * //
 * //     http://www.apache.org/licenses/LICENSE-2.0
 * //
 * // Unless required by applicable law or agreed to in writing, software
 * // distributed under the License is distributed on an "AS IS" BASIS,
 * // See the License for the specific language governing permissions and
 * // limitations under the License.
 */

package position_store

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sqlship/sqlship/pkg/config"
	"github.com/sqlship/sqlship/pkg/metrics"
)

// fileRepo keeps the offsets in a line-oriented `table:offset` file.
// Every commit rewrites the whole file through a temp file and a rename,
// so a crash leaves either the old or the new complete file on disk.
type fileRepo struct {
	path string
}

func NewFileRepo(path string) Repo {
	return &fileRepo{path: path}
}

func (repo *fileRepo) Init() error {
	dir := filepath.Dir(repo.path)
	if _, err := os.Stat(dir); err != nil {
		return errors.Annotatef(err, "state file directory %s not accessible", dir)
	}
	return nil
}

func (repo *fileRepo) EnsureTables(jobs []config.TableJob) error {
	state, exists, err := repo.load()
	if err != nil {
		return errors.Trace(err)
	}

	added := false
	for _, job := range jobs {
		if _, ok := state[job.Table]; !ok {
			state[job.Table] = 0
			added = true
		}
	}

	if !exists || added {
		if err := repo.write(state); err != nil {
			return errors.Trace(err)
		}
		if !exists {
			log.Infof("state file %s created", repo.path)
		}
	}
	return nil
}

func (repo *fileRepo) Get(table string) (int, bool, error) {
	state, _, err := repo.load()
	if err != nil {
		return 0, false, errors.Trace(err)
	}
	offset, ok := state[table]
	return offset, ok, nil
}

func (repo *fileRepo) All() (map[string]int, error) {
	state, _, err := repo.load()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return state, nil
}

func (repo *fileRepo) Put(table string, offset int) error {
	if table == "" {
		return errors.New("empty table name")
	}
	if offset < 0 {
		return errors.Errorf("negative offset %d for table %s", offset, table)
	}

	state, _, err := repo.load()
	if err != nil {
		return errors.Trace(err)
	}

	if cur, ok := state[table]; ok && offset < cur {
		return errors.Annotatef(ErrOffsetRegression, "table %s: stored %d, put %d", table, cur, offset)
	}

	state[table] = offset
	if err := repo.write(state); err != nil {
		return errors.Trace(err)
	}
	metrics.StateCommitCounter.WithLabelValues(table).Add(1)
	return nil
}

func (repo *fileRepo) Close() error {
	return nil
}

func (repo *fileRepo) load() (map[string]int, bool, error) {
	state := make(map[string]int)

	f, err := os.Open(repo.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, false, nil
		}
		return nil, false, errors.Annotatef(err, "fail to read state file %s", repo.path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) != 2 {
			log.Warnf("skip malformed state line %s:%d: %q", repo.path, lineNo, line)
			continue
		}

		offset, err := strconv.Atoi(parts[1])
		if err != nil || offset < 0 {
			return nil, true, errors.Errorf("corrupt offset at %s:%d: %q", repo.path, lineNo, line)
		}
		state[parts[0]] = offset
	}
	if err := scanner.Err(); err != nil {
		return nil, true, errors.Annotatef(err, "fail to read state file %s", repo.path)
	}
	return state, true, nil
}

func (repo *fileRepo) write(state map[string]int) error {
	tables := make([]string, 0, len(state))
	for table := range state {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var b strings.Builder
	for _, table := range tables {
		fmt.Fprintf(&b, "%s:%d\n", table, state[table])
	}

	tmp := repo.path + ".tmp"
	if err := ioutil.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return errors.Annotatef(err, "fail to write state file %s", tmp)
	}
	if err := os.Rename(tmp, repo.path); err != nil {
		return errors.Annotatef(err, "fail to replace state file %s", repo.path)
	}
	return nil
}
