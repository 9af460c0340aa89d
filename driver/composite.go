package driver

import "context"

type compositeDriver struct {
	drivers []Driver
}

var _ Driver = (*compositeDriver)(nil)

// NewComposite returns a Driver that tiers multiple drivers together.
// Get and Exists check drivers in order and return the first hit; Put,
// Delete and Flush fan out to all of them. This enables topologies such as
// an in-memory L1 backed by a Redis L2. At least one driver is required;
// panics if given none.
func NewComposite(drivers ...Driver) Driver {
	if len(drivers) == 0 {
		panic("driver: NewComposite requires at least one driver")
	}
	return &compositeDriver{drivers: drivers}
}

func (c *compositeDriver) Get(ctx context.Context, key string) (*Entry, error) {
	for _, d := range c.drivers {
		entry, err := d.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}
	return nil, nil
}

func (c *compositeDriver) Put(ctx context.Context, entry *Entry) error {
	var firstErr error
	for _, d := range c.drivers {
		if err := d.Put(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeDriver) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, d := range c.drivers {
		if err := d.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeDriver) Exists(ctx context.Context, key string) (bool, error) {
	for _, d := range c.drivers {
		found, err := d.Exists(ctx, key)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

func (c *compositeDriver) Flush(ctx context.Context) error {
	var firstErr error
	for _, d := range c.drivers {
		if err := d.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeDriver) Close(ctx context.Context) error {
	var firstErr error
	for _, d := range c.drivers {
		if err := d.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
