package cookies

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestStore_Save(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/data/secrets/cookies.txt")
	require.False(t, store.Exists())

	err := store.Save("# Netscape HTTP Cookie File\r\n.example.com\tTRUE\t/\tFALSE\t0\tsid\tabc")
	require.NoError(t, err)
	require.True(t, store.Exists())

	got, err := afero.ReadFile(fs, "/data/secrets/cookies.txt")
	require.NoError(t, err)
	require.Equal(t, "# Netscape HTTP Cookie File\n.example.com\tTRUE\t/\tFALSE\t0\tsid\tabc\n", string(got))

	entries, err := afero.ReadDir(fs, "/data/secrets")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not be left behind")
}

func TestStore_SaveReplaces(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "cookies.txt")

	require.NoError(t, store.Save("first\n"))
	require.NoError(t, store.Save("second\n"))

	got, err := afero.ReadFile(fs, "cookies.txt")
	require.NoError(t, err)
	require.Equal(t, "second\n", string(got))
}

func TestStore_SaveEmpty(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "cookies.txt")
	require.ErrorIs(t, store.Save(" \r\n\t"), ErrEmpty)
	require.False(t, store.Exists())
}

func TestInspect(t *testing.T) {
	content := "# Netscape HTTP Cookie File\r\n" +
		".example.com\tTRUE\t/\tFALSE\t1767225600\tsid\tabc\n" +
		"#HttpOnly_.example.com\tTRUE\t/\tTRUE\t0\ttoken\txyz\n" +
		"\n" +
		".example.com TRUE / FALSE 0 spaced value\n" +
		".example.com\tTRUE\t/\tFALSE\tnever\tbad\tdate\n"

	sum := Inspect(content)
	require.Equal(t, 2, sum.Valid)
	require.Equal(t, 2, sum.Invalid)
	require.Equal(t, ".example.com TRUE / FALSE 0 spaced value", sum.FirstInvalid)
}
