// Copyright 2024 The CHTL Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scanner

import (
	"github.com/bep/lazycache"
	"github.com/cespare/xxhash/v2"
	"github.com/pbnjay/memory"
)

// FragmentCache maps a fragment's content hash to its compiled form.
// It is per-compilation (section 5: "the fragment cache ... is
// per-compilation; within one run it is accessed sequentially, so no
// locking is required"), so a single lazycache.Cache sized once at
// construction is enough; no cross-compilation sharing is attempted.
type FragmentCache[V any] struct {
	c *lazycache.Cache[uint64, V]
}

// defaultMaxEntries picks a cache size proportional to available
// system memory, the way Hugo's own caches size themselves, capped so
// a constrained container still gets a useful cache.
func defaultMaxEntries() int {
	const bytesPerEntryEstimate = 4096
	avail := memory.FreeMemory()
	if avail == 0 {
		return 2048
	}
	n := int(avail / 64 / bytesPerEntryEstimate) // use at most ~1/64th of free memory
	if n < 256 {
		return 256
	}
	if n > 65536 {
		n = 65536
	}
	return n
}

// NewFragmentCache returns an empty fragment cache sized from available
// system memory.
func NewFragmentCache[V any]() *FragmentCache[V] {
	c := lazycache.New[uint64, V](lazycache.Options[uint64, V]{
		MaxEntries: defaultMaxEntries(),
	})
	return &FragmentCache[V]{c: c}
}

// Hash returns the content-hash key for a fragment's raw bytes.
func Hash(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// GetOrCompile returns the cached value for content's hash, computing
// and storing it via compile on a miss.
func (fc *FragmentCache[V]) GetOrCompile(content []byte, compile func() (V, error)) (V, error) {
	v, _, err := fc.c.GetOrCreate(Hash(content), func(key uint64) (V, error) {
		return compile()
	})
	return v, err
}
