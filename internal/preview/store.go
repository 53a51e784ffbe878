package preview

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	ErrReleased = errors.New("preview released")
	ErrTooLarge = errors.New("video exceeds upload limit")
)

// Ref is a staged local copy of a selected video. It stays readable until
// released.
type Ref struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	path      string
}

// Store stages selected videos on an afero filesystem and hands out preview
// references. Every staged file must be released by its owner.
type Store struct {
	fs       afero.Fs
	dir      string
	maxBytes int64

	mu   sync.Mutex
	refs map[uuid.UUID]*Ref
}

func NewStore(fs afero.Fs, dir string, maxBytes int64) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	return &Store{
		fs:       fs,
		dir:      dir,
		maxBytes: maxBytes,
		refs:     make(map[uuid.UUID]*Ref),
	}, nil
}

// Stage copies r into the store. Partial files are removed on every error
// path.
func (s *Store) Stage(name string, r io.Reader) (*Ref, error) {
	ref := &Ref{
		ID:        uuid.New(),
		Name:      filepath.Base(strings.TrimSpace(name)),
		CreatedAt: time.Now(),
	}
	ref.path = filepath.Join(s.dir, ref.ID.String()+strings.ToLower(filepath.Ext(ref.Name)))

	f, err := s.fs.OpenFile(ref.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create preview file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = s.fs.Remove(ref.path)
		return nil, fmt.Errorf("write preview file: %w", copyErr)
	case closeErr != nil:
		_ = s.fs.Remove(ref.path)
		return nil, fmt.Errorf("close preview file: %w", closeErr)
	case s.maxBytes > 0 && n > s.maxBytes:
		_ = s.fs.Remove(ref.path)
		return nil, ErrTooLarge
	}

	ref.Size = n

	s.mu.Lock()
	s.refs[ref.ID] = ref
	s.mu.Unlock()

	return ref, nil
}

// Open returns a reader over a staged video.
func (s *Store) Open(id uuid.UUID) (afero.File, *Ref, error) {
	s.mu.Lock()
	ref, ok := s.refs[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil, ErrReleased
	}

	f, err := s.fs.Open(ref.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open preview file: %w", err)
	}
	return f, ref, nil
}

// Release deletes a staged video. Releasing twice is a no-op.
func (s *Store) Release(id uuid.UUID) error {
	s.mu.Lock()
	ref, ok := s.refs[id]
	delete(s.refs, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := s.fs.Remove(ref.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove preview file: %w", err)
	}
	return nil
}

func (s *Store) ReleaseAll() error {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.refs))
	for id := range s.refs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.Release(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active is the number of staged, unreleased videos.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}
