package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/seva-trust/donorportal/token"
)

var _ Store = (*FileStore)(nil)

const credentialsFileName = "credentials.json"

// FileStore persists the token pair to a JSON file so tokens survive
// process restarts. Writes are best effort; a read failure just looks
// like being logged out.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore stores tokens at dir/credentials.json, creating dir if
// needed. The file is written with 0600 permissions.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{path: filepath.Join(dir, credentialsFileName)}, nil
}

func (fs *FileStore) AccessToken() string {
	return fs.read().Access
}

func (fs *FileStore) RefreshToken() string {
	return fs.read().Refresh
}

func (fs *FileStore) SetPair(p token.Pair) {
	fs.write(p)
}

func (fs *FileStore) SetAccess(access string) {
	p := fs.read()
	p.Access = access
	fs.write(p)
}

func (fs *FileStore) Clear() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	os.Remove(fs.path)
}

func (fs *FileStore) read() token.Pair {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		return token.Pair{}
	}
	var p token.Pair
	if err := json.Unmarshal(data, &p); err != nil {
		return token.Pair{}
	}
	return p
}

func (fs *FileStore) write(p token.Pair) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	os.WriteFile(fs.path, data, 0o600)
}
