package directory

import (
	"context"
	"sync"
)

// StaticDirectory is an in-memory [Directory]. Err, when set, is returned by every Lookup.
type StaticDirectory struct {
	mu      sync.RWMutex
	records map[string]Record
	err     error
	lookups int
}

func NewStaticDirectory(records ...Record) *StaticDirectory {
	d := &StaticDirectory{records: make(map[string]Record, len(records))}
	for _, r := range records {
		d.Put(r)
	}
	return d
}

func (d *StaticDirectory) Put(r Record) {
	r.Email = NormalizeEmail(r.Email)
	d.mu.Lock()
	d.records[r.Email] = r
	d.mu.Unlock()
}

func (d *StaticDirectory) Delete(email string) {
	d.mu.Lock()
	delete(d.records, NormalizeEmail(email))
	d.mu.Unlock()
}

// SetError makes subsequent lookups fail with err; nil restores normal behavior.
func (d *StaticDirectory) SetError(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// Lookups returns how many lookups were served.
func (d *StaticDirectory) Lookups() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lookups
}

func (d *StaticDirectory) Lookup(ctx context.Context, email string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.err != nil {
		return Record{}, d.err
	}
	r, ok := d.records[NormalizeEmail(email)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}
