package ledger

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// accountCache memoizes account reads and collapses concurrent reads of the
// same address into one RPC call. Failed reads are not cached.
type accountCache struct {
	data  sync.Map
	group singleflight.Group
}

func (c *accountCache) get(key string) (*Account, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Account), true
}

func (c *accountCache) load(key string, fetch func() (*Account, error)) (*Account, error) {
	if acct, ok := c.get(key); ok {
		return acct, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		acct, err := fetch()
		if err != nil {
			return nil, err
		}
		c.data.Store(key, acct)
		return acct, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Account), nil
}
