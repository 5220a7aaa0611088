package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/assetgrabber/assetgrabber/internal/common"
)

func TestDir_PutGetRoundtrip(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Put("plugin-raw-data/akismet.json", []byte(`{"slug":"akismet"}`)))

	data, mtime, err := d.Get("plugin-raw-data/akismet.json")
	require.NoError(t, err)
	require.Equal(t, `{"slug":"akismet"}`, string(data))
	require.WithinDuration(t, time.Now(), mtime, time.Minute)
}

func TestDir_GetMissing(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	_, _, err = d.Get("nope")
	require.True(t, errors.Is(err, common.ErrNotFound))
}

func TestMemory_TTLExpiry(t *testing.T) {
	m := NewMemory()
	m.PutAt("raw-changelog", []byte("r100 |"), time.Now().Add(-25*time.Hour))

	_, mtime, err := m.Get("raw-changelog")
	require.NoError(t, err)
	require.False(t, Fresh(mtime, 24*time.Hour))

	require.NoError(t, m.Put("raw-changelog", []byte("r101 |")))
	_, mtime, err = m.Get("raw-changelog")
	require.NoError(t, err)
	require.True(t, Fresh(mtime, 24*time.Hour))
}
