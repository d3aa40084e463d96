// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*DB, string) {
	path := filepath.Join(t.TempDir(), "mpg.db")
	db, err := Open(path)
	require.NoError(t, err)
	return db, path
}

func TestGetMissing(t *testing.T) {
	db, _ := openTemp(t)
	defer db.Close()
	_, err := db.GetU32("freq_set_x1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetGet(t *testing.T) {
	db, _ := openTemp(t)
	defer db.Close()
	require.NoError(t, db.SetU32("freq_set_x10", 15000))
	require.NoError(t, db.SetU32("freq_set_x10", 20000))
	require.NoError(t, db.SetU32("step_basic_set", math.MaxUint32))

	v, err := db.GetU32("freq_set_x10")
	require.NoError(t, err)
	assert.Equal(t, uint32(20000), v)
	v, err = db.GetU32("step_basic_set")
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), v)

	keys, err := db.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"freq_set_x10", "step_basic_set"}, keys)

	require.NoError(t, db.Delete("freq_set_x10"))
	require.NoError(t, db.Delete("freq_set_x10"))
	_, err = db.GetU32("freq_set_x10")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersists(t *testing.T) {
	db, path := openTemp(t)
	require.NoError(t, db.SetU32("freq_set_x100", 18000))
	require.NoError(t, db.Close())

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())
	v, err := db.GetU32("freq_set_x100")
	require.NoError(t, err)
	assert.Equal(t, uint32(18000), v)
}
