package cachefake

import (
	"sync"

	"github.com/seva-trust/donorportal/session/profilecache"
	"github.com/seva-trust/donorportal/users"
)

var _ profilecache.Cache = (*Cache)(nil)

// Cache is an in-memory profilecache.Cache. Setting Corrupt makes Profile
// report a damaged store, which should push callers onto the re-fetch path.
type Cache struct {
	lock sync.Mutex

	profile  *users.User
	redirect string

	Corrupt    bool
	ClearCalls int
}

func NewCache() *Cache {
	return &Cache{}
}

// NewCacheWith returns a fake pre-loaded with the given profile.
func NewCacheWith(u *users.User) *Cache {
	return &Cache{profile: u}
}

func (c *Cache) Profile() (*users.User, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.Corrupt {
		return nil, profilecache.ErrCorrupt
	}
	if c.profile == nil {
		return nil, profilecache.ErrNotFound
	}
	return c.profile, nil
}

func (c *Cache) SetProfile(u *users.User) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.profile = u
	return nil
}

func (c *Cache) RedirectPath() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.redirect
}

func (c *Cache) SetRedirectPath(path string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.redirect = path
	return nil
}

func (c *Cache) Clear() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.profile = nil
	c.redirect = ""
	c.Corrupt = false
	c.ClearCalls++
	return nil
}

// Has reports whether a profile is currently cached.
func (c *Cache) Has() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.profile != nil
}
