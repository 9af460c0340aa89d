package driver

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often emulated-TTL drivers remove expired
// entries in the background when no interval is configured.
const DefaultSweepInterval = time.Minute

// MemoryConfig configures the in-process memory driver.
type MemoryConfig struct {
	// SweepInterval is how often the background sweeper removes expired
	// entries. Defaults to DefaultSweepInterval.
	SweepInterval time.Duration
}

type memoryDriver struct {
	ctx       context.Context
	cancel    context.CancelFunc
	entries   map[string]*Entry
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
}

var _ Driver = (*memoryDriver)(nil)

// NewMemory returns a Driver backed by a single-process in-memory table.
// TTL is emulated: a background goroutine sweeps expired entries at the
// configured interval, and the read path relies on the caller's lazy check.
// Entries have no cross-process visibility and are lost on restart.
func NewMemory(parent context.Context, cfg MemoryConfig) Driver {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	ctx, cancel := context.WithCancel(parent)
	d := &memoryDriver{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*Entry),
	}
	d.waitGroup.Add(1)
	go d.sweep(cfg.SweepInterval)
	return d
}

func (d *memoryDriver) Get(_ context.Context, key string) (*Entry, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	entry, ok := d.entries[key]
	if !ok {
		return nil, nil
	}
	// Copy so callers never alias the stored entry.
	e := *entry
	return &e, nil
}

func (d *memoryDriver) Put(_ context.Context, entry *Entry) error {
	e := *entry
	d.mutex.Lock()
	d.entries[e.Key] = &e
	d.mutex.Unlock()
	return nil
}

func (d *memoryDriver) Delete(_ context.Context, key string) error {
	d.mutex.Lock()
	delete(d.entries, key)
	d.mutex.Unlock()
	return nil
}

func (d *memoryDriver) Exists(_ context.Context, key string) (bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	entry, ok := d.entries[key]
	if !ok {
		return false, nil
	}
	return !entry.Expired(time.Now()), nil
}

func (d *memoryDriver) Flush(_ context.Context) error {
	d.mutex.Lock()
	d.entries = make(map[string]*Entry)
	d.mutex.Unlock()
	return nil
}

func (d *memoryDriver) Close(_ context.Context) error {
	d.once.Do(func() {
		d.cancel()
		d.waitGroup.Wait()
	})
	return nil
}

func (d *memoryDriver) sweep(interval time.Duration) {
	defer d.waitGroup.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			d.mutex.Lock()
			for key, entry := range d.entries {
				if entry.Expired(now) {
					delete(d.entries, key)
				}
			}
			d.mutex.Unlock()
		}
	}
}
