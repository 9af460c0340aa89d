package driver

import "context"

type nullDriver struct{}

var _ Driver = nullDriver{}

// NewNull returns a Driver that stores nothing: every read misses and every
// write succeeds. Useful for disabling caching without changing call sites.
func NewNull() Driver {
	return nullDriver{}
}

func (nullDriver) Get(context.Context, string) (*Entry, error) { return nil, nil }
func (nullDriver) Put(context.Context, *Entry) error           { return nil }
func (nullDriver) Delete(context.Context, string) error        { return nil }
func (nullDriver) Exists(context.Context, string) (bool, error) {
	return false, nil
}
func (nullDriver) Flush(context.Context) error { return nil }
func (nullDriver) Close(context.Context) error { return nil }
