package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/matzehuels/famtree/pkg/errors"
)

const (
	chartExt    = ".json"
	currentFile = "current"
)

// FileStore keeps one JSON file per chart in a directory.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore opens dir, creating it when needed. An empty dir selects
// famtree/charts under the user config directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "locate config dir")
		}
		dir = filepath.Join(base, "famtree", "charts")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the store directory.
func (s *FileStore) Path() string { return s.dir }

func (s *FileStore) file(id string) string { return filepath.Join(s.dir, id+chartExt) }

// read loads one chart file. Missing, corrupt and expired files yield a nil
// session; stale reports whether the file should be removed.
func read(path string) (sess *Session, stale bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "read %s", filepath.Base(path))
	}
	sess, err = decode(data)
	if err != nil {
		return nil, true, err
	}
	if sess.IsExpired() {
		return nil, true, nil
	}
	return sess, false, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, _, err := read(s.file(id))
	return sess, err
}

// Set writes through a temp file in the same directory so readers never see
// a partial chart.
func (s *FileStore) Set(ctx context.Context, sess *Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, sess.ID+"-*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "save chart %s", sess.ID)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), s.file(sess.ID))
	}
	if werr != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeInternal, werr, "save chart %s", sess.ID)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.file(id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete chart %s", id)
	}
	return nil
}

// Cleanup removes expired and unreadable chart files.
func (s *FileStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+chartExt))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "list charts")
	}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, stale, _ := read(p); stale {
			os.Remove(p)
		}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)

// CLIStore is a FileStore that also remembers the chart the CLI saved last,
// which "famtree explore --resume" reopens.
type CLIStore struct {
	*FileStore
}

// NewCLIStore opens a CLIStore under dir, or the default directory.
func NewCLIStore(dir string) (*CLIStore, error) {
	fs, err := NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	return &CLIStore{fs}, nil
}

// Current returns the last saved chart, or nil when there is none or it
// expired.
func (c *CLIStore) Current(ctx context.Context) (*Session, error) {
	id, err := os.ReadFile(filepath.Join(c.dir, currentFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read current chart")
	}
	return c.Get(ctx, strings.TrimSpace(string(id)))
}

// SaveCurrent stores sess and marks it current.
func (c *CLIStore) SaveCurrent(ctx context.Context, sess *Session) error {
	if err := c.Set(ctx, sess); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(c.dir, currentFile), []byte(sess.ID+"\n"), 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "mark current chart")
	}
	return nil
}
