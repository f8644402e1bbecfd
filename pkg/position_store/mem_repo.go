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
	"github.com/juju/errors"

	"github.com/sqlship/sqlship/pkg/config"
)

type memRepo struct {
	offsets map[string]int
}

func NewMemRepo() Repo {
	return &memRepo{offsets: make(map[string]int)}
}

func (repo *memRepo) Init() error {
	return nil
}

func (repo *memRepo) EnsureTables(jobs []config.TableJob) error {
	for _, job := range jobs {
		if _, ok := repo.offsets[job.Table]; !ok {
			repo.offsets[job.Table] = 0
		}
	}
	return nil
}

func (repo *memRepo) Get(table string) (int, bool, error) {
	offset, ok := repo.offsets[table]
	return offset, ok, nil
}

func (repo *memRepo) All() (map[string]int, error) {
	state := make(map[string]int, len(repo.offsets))
	for table, offset := range repo.offsets {
		state[table] = offset
	}
	return state, nil
}

func (repo *memRepo) Put(table string, offset int) error {
	if offset < 0 {
		return errors.Errorf("negative offset %d for table %s", offset, table)
	}
	if cur, ok := repo.offsets[table]; ok && offset < cur {
		return errors.Annotatef(ErrOffsetRegression, "table %s: stored %d, put %d", table, cur, offset)
	}
	repo.offsets[table] = offset
	return nil
}

func (repo *memRepo) Close() error {
	return nil
}
