package cache

import (
	"sync"
	"time"

	"github.com/assetgrabber/assetgrabber/internal/common"
)

type memItem struct {
	data  []byte
	mtime time.Time
}

// Memory is an in-memory Store. It backs engine and pipeline tests so the
// sync logic can run without real file or object I/O.
type Memory struct {
	mu    sync.Mutex
	items map[string]memItem

	// Now is the clock used to stamp writes; tests may replace it.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memItem), Now: time.Now}
}

func (m *Memory) Get(key string) ([]byte, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, time.Time{}, common.ErrNotFound
	}
	return it.data, it.mtime, nil
}

func (m *Memory) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memItem{data: append([]byte(nil), data...), mtime: m.Now()}
	return nil
}

// PutAt stores data with an explicit modification time. Test helper for
// exercising TTL expiry.
func (m *Memory) PutAt(key string, data []byte, mtime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memItem{data: append([]byte(nil), data...), mtime: mtime}
}
