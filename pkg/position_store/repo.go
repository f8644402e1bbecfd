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

// ErrOffsetRegression is returned by Put when the new offset is smaller than
// the stored one. Offsets are cursors into an append-only table and must
// never move backwards.
var ErrOffsetRegression = errors.New("offset must not decrease")

// Repo persists the count of rows already shipped, per table.
type Repo interface {
	Init() error

	// EnsureTables creates a zero offset for every job table that has no
	// entry yet. Idempotent; existing entries are never touched.
	EnsureTables(jobs []config.TableJob) error

	// Get returns the offset for table and whether an entry exists.
	Get(table string) (int, bool, error)

	// All returns the full current mapping. Side-effect-free.
	All() (map[string]int, error)

	// Put replaces table's entry with offset, leaving all other entries
	// unchanged. Fails with ErrOffsetRegression on a smaller offset.
	Put(table string, offset int) error

	Close() error
}
