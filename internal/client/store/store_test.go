package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/betref-client/internal/shared/config"
)

type marker struct {
	Sent bool      `json:"enviada"`
	At   time.Time `json:"fecha"`
}

// exercise roda o mesmo contrato em todas as implementações
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	var got marker
	ok, err := s.Get(ctx, "verificacion_enviada", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Set(ctx, "verificacion_enviada", marker{Sent: true, At: at}))
	require.NoError(t, s.Set(ctx, "token", "abc"))

	ok, err = s.Get(ctx, "verificacion_enviada", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Sent)
	assert.True(t, got.At.Equal(at))

	// substituição inteira do valor
	require.NoError(t, s.Set(ctx, "token", "xyz"))
	var tok string
	_, err = s.Get(ctx, "token", &tok)
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	require.NoError(t, s.Delete(ctx, "token", "verificacion_enviada", "missing"))
	ok, err = s.Get(ctx, "token", &tok)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Ping(ctx))
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := OpenFile(path, "default")
	require.NoError(t, err)
	exercise(t, s)
	require.NoError(t, s.Close())
}

func TestFile_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := OpenFile(path, "ana")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "cache:referidos", []string{"a", "b"}))
	require.NoError(t, s.Close())

	s, err = OpenFile(path, "ana")
	require.NoError(t, err)
	defer s.Close()
	var got []string
	ok, err := s.Get(ctx, "cache:referidos", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	// namespaces não se misturam
	other, err := OpenFile(filepath.Join(filepath.Dir(path), "state.json"), "bob")
	require.NoError(t, err)
	defer other.Close()
	ok, err = other.Get(ctx, "cache:referidos", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

// dois processos sobre o mesmo arquivo: cada escrita só mexe nas próprias chaves
func TestFile_TwoHandlesKeepEachOthersKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	a, err := OpenFile(path, "default")
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Set(ctx, "verificacion_enviada", marker{Sent: true}))

	b, err := OpenFile(path, "default")
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "token", "from-b"))
	require.NoError(t, b.Close())

	// a enxerga a escrita de b sem reabrir
	var tok string
	ok, err := a.Get(ctx, "token", &tok)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-b", tok)

	require.NoError(t, a.Delete(ctx, "verificacion_enviada"))

	c, err := OpenFile(path, "default")
	require.NoError(t, err)
	defer c.Close()
	ok, err = c.Get(ctx, "token", &tok)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-b", tok)
	var mk marker
	ok, err = c.Get(ctx, "verificacion_enviada", &mk)
	require.NoError(t, err)
	assert.False(t, ok)

	// logout em c não pode ser desfeito por uma escrita posterior de a
	require.NoError(t, c.Delete(ctx, "token"))
	require.NoError(t, a.Set(ctx, "cache:sorteos", []int{1}))
	ok, err = c.Get(ctx, "token", &tok)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(rdb, "ops")
	exercise(t, s)

	require.NoError(t, s.Set(context.Background(), "token", "t1"))
	assert.True(t, mr.Exists("betref:ops:token"))
	require.NoError(t, s.Close())
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.Config{StoreBackend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(context.Background(), config.Config{StoreBackend: "file", StorePath: filepath.Join(t.TempDir(), "s.json"), StoreNamespace: "default"})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)
	_ = s.Close()

	_, err = Open(context.Background(), config.Config{StoreBackend: "etcd"})
	assert.Error(t, err)
}
