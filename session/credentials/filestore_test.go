package credentials_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seva-trust/donorportal/session/credentials"
	"github.com/seva-trust/donorportal/token"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := credentials.NewFileStore(dir)
	require.NoError(t, err)

	require.Empty(t, fs.AccessToken())
	require.Empty(t, fs.RefreshToken())

	fs.SetPair(token.Pair{Access: "a1", Refresh: "r1"})
	require.Equal(t, "a1", fs.AccessToken())
	require.Equal(t, "r1", fs.RefreshToken())

	fs.SetAccess("a2")
	require.Equal(t, "a2", fs.AccessToken())
	require.Equal(t, "r1", fs.RefreshToken(), "refresh token must survive an access-only update")

	// Tokens persist across store instances.
	again, err := credentials.NewFileStore(dir)
	require.NoError(t, err)
	require.Equal(t, "a2", again.AccessToken())

	fs.Clear()
	require.Empty(t, fs.AccessToken())
	require.Empty(t, fs.RefreshToken())
	_, err = os.Stat(filepath.Join(dir, "credentials.json"))
	require.True(t, os.IsNotExist(err))
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.json"), []byte("{not json"), 0o600))

	fs, err := credentials.NewFileStore(dir)
	require.NoError(t, err)
	require.Empty(t, fs.AccessToken())
}
