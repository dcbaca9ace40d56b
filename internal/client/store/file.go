package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// snapshot é o conteúdo do arquivo de estado
type snapshot struct {
	Version   int                                   `json:"version"`
	Entries   map[string]map[string]json.RawMessage `json:"entries"` // namespace -> chave -> valor
	UpdatedAt time.Time                             `json:"updated_at"`
}

func emptySnapshot() *snapshot {
	return &snapshot{Version: 1, Entries: map[string]map[string]json.RawMessage{}, UpdatedAt: time.Now()}
}

// File persiste o store num único arquivo JSON compartilhado entre processos.
// Cada operação relê o disco sob um lock consultivo (<path>.lock); escritas
// aplicam só as chaves da chamada e trocam o arquivo por rename.
type File struct {
	mu   sync.Mutex
	path string
	lock *os.File
	ns   string
}

func OpenFile(path, namespace string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	lf, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	f := &File{path: path, lock: lf, ns: namespace}

	// valida (ou cria) o arquivo já na abertura
	err = f.locked(true, func() error {
		snap, err := f.readLocked()
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return f.writeLocked(snap)
		}
		return nil
	})
	if err != nil {
		_ = lf.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) locked(exclusive bool, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := lockFile(f.lock, exclusive); err != nil {
		return err
	}
	defer unlockFile(f.lock)
	return fn()
}

func (f *File) readLocked() (*snapshot, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(raw) == 0) {
		return emptySnapshot(), nil
	}
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	if snap.Entries == nil {
		snap.Entries = map[string]map[string]json.RawMessage{}
	}
	return &snap, nil
}

// writeLocked grava num temporário do mesmo diretório e renomeia por cima
func (f *File) writeLocked(snap *snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op depois do rename

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *File) withWrite(ctx context.Context, fn func(map[string]json.RawMessage)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.locked(true, func() error {
		snap, err := f.readLocked()
		if err != nil {
			return err
		}
		bucket, ok := snap.Entries[f.ns]
		if !ok {
			bucket = map[string]json.RawMessage{}
			snap.Entries[f.ns] = bucket
		}
		fn(bucket)
		snap.UpdatedAt = time.Now()
		return f.writeLocked(snap)
	})
}

func (f *File) Get(_ context.Context, key string, dst any) (bool, error) {
	var raw json.RawMessage
	var ok bool
	err := f.locked(false, func() error {
		snap, err := f.readLocked()
		if err != nil {
			return err
		}
		raw, ok = snap.Entries[f.ns][key]
		return nil
	})
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

func (f *File) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.withWrite(ctx, func(m map[string]json.RawMessage) { m[key] = b })
}

func (f *File) Delete(ctx context.Context, keys ...string) error {
	return f.withWrite(ctx, func(m map[string]json.RawMessage) {
		for _, k := range keys {
			delete(m, k)
		}
	})
}

func (f *File) Ping(context.Context) error {
	_, err := os.Stat(f.path)
	return err
}

func (f *File) Close() error { return f.lock.Close() }
