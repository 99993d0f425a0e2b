package profilecache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/seva-trust/donorportal/users"
)

const (
	profileFile  = "user_data.json"
	redirectFile = "redirect_after_login"
)

// userDocument mirrors the backend's dashboard payload shape so the cached
// file is byte-compatible with what the API returns.
type userDocument struct {
	UserInfo *users.User `json:"user_info"`
}

// FileCache persists the cache as files under a single directory.
type FileCache struct {
	dir string
}

var _ Cache = (*FileCache)(nil)

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileCache] MkdirAll")
	}
	return &FileCache{dir: dir}, nil
}

func (fc *FileCache) Profile() (*users.User, error) {
	raw, err := os.ReadFile(filepath.Join(fc.dir, profileFile))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileCache.Profile] ReadFile")
	}

	var doc userDocument
	if err := json.Unmarshal(raw, &doc); err != nil || doc.UserInfo == nil {
		return nil, ErrCorrupt
	}
	return doc.UserInfo, nil
}

func (fc *FileCache) SetProfile(u *users.User) error {
	raw, err := json.Marshal(userDocument{UserInfo: u})
	if err != nil {
		return errors.Wrap(err, "[FileCache.SetProfile] Marshal")
	}
	if err := os.WriteFile(filepath.Join(fc.dir, profileFile), raw, 0o600); err != nil {
		return errors.Wrap(err, "[FileCache.SetProfile] WriteFile")
	}
	return nil
}

func (fc *FileCache) RedirectPath() string {
	raw, err := os.ReadFile(filepath.Join(fc.dir, redirectFile))
	if err != nil {
		return ""
	}
	return string(raw)
}

func (fc *FileCache) SetRedirectPath(path string) error {
	if err := os.WriteFile(filepath.Join(fc.dir, redirectFile), []byte(path), 0o600); err != nil {
		return errors.Wrap(err, "[FileCache.SetRedirectPath] WriteFile")
	}
	return nil
}

func (fc *FileCache) Clear() error {
	entries, err := os.ReadDir(fc.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[FileCache.Clear] ReadDir")
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(fc.dir, entry.Name())); err != nil {
			return errors.Wrap(err, "[FileCache.Clear] RemoveAll")
		}
	}
	return nil
}
