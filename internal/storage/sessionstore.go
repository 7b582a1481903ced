package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/valter-silva-au/taskflow/pkg/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SessionFileName is the name of the persisted session document.
const SessionFileName = "session.yaml"

// SessionStoreManager persists the signed-in session and tells subscribers
// when it changes, whether the change came from this process or another
// process sharing the same base directory.
type SessionStoreManager interface {
	Get() (models.Session, error)
	Set(token string, user models.User) error
	Clear() error
	Subscribe() (<-chan models.Session, func())
	Watch(ctx context.Context) error
	Token() string
	Path() string
}

type fileSessionStore struct {
	basePath string
	logger   *zap.Logger
	now      func() time.Time

	mu           sync.Mutex
	subs         map[int]chan models.Session
	nextSub      int
	lastNotified *models.Session
}

// NewSessionStoreManager creates a SessionStoreManager backed by a single
// YAML file in basePath. logger may be nil.
func NewSessionStoreManager(basePath string, logger *zap.Logger) SessionStoreManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fileSessionStore{
		basePath: basePath,
		logger:   logger,
		now:      time.Now,
		subs:     make(map[int]chan models.Session),
	}
}

func (s *fileSessionStore) Path() string {
	return filepath.Join(s.basePath, SessionFileName)
}

func (s *fileSessionStore) lockPath() string {
	return filepath.Join(s.basePath, ".session.lock")
}

// Get reads the session from disk. A missing file is the empty session.
func (s *fileSessionStore) Get() (models.Session, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return models.Session{}, nil
		}
		return models.Session{}, fmt.Errorf("reading session: %w", err)
	}
	var sess models.Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return models.Session{}, fmt.Errorf("parsing session: %w", err)
	}
	if sess.Token == "" {
		// A user without a token is not a session.
		return models.Session{}, nil
	}
	return sess, nil
}

// Token returns the stored bearer token, or "" when signed out or unreadable.
func (s *fileSessionStore) Token() string {
	sess, err := s.Get()
	if err != nil {
		s.logger.Warn("reading session token", zap.Error(err))
		return ""
	}
	return sess.Token
}

// Set writes the token and user as one document and notifies subscribers.
func (s *fileSessionStore) Set(token string, user models.User) error {
	if token == "" {
		return fmt.Errorf("setting session: token must not be empty")
	}
	sess := models.Session{Token: token, User: &user, SavedAt: s.now().UTC()}

	data, err := yaml.Marshal(&sess)
	if err != nil {
		return fmt.Errorf("setting session: marshalling: %w", err)
	}

	if err := s.withLock(func() error {
		return writeFileAtomic(s.Path(), data, 0o600)
	}); err != nil {
		return fmt.Errorf("setting session: %w", err)
	}

	s.logger.Info("session stored", zap.String("username", user.Username))
	s.notify(sess)
	return nil
}

// Clear removes the session document and notifies subscribers.
func (s *fileSessionStore) Clear() error {
	if err := s.withLock(func() error {
		if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	s.logger.Info("session cleared")
	s.notify(models.Session{})
	return nil
}

// Subscribe returns a channel that receives the latest session after every
// change. Only the most recent value is buffered. The returned function
// unsubscribes and closes the channel.
func (s *fileSessionStore) Subscribe() (<-chan models.Session, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan models.Session, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// Watch observes the base directory and re-broadcasts session changes made
// by other processes. It returns once the watcher is running; watching stops
// when ctx is done.
func (s *fileSessionStore) Watch(ctx context.Context) error {
	if err := os.MkdirAll(s.basePath, 0o700); err != nil {
		return fmt.Errorf("watching session: creating directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching session: %w", err)
	}
	if err := watcher.Add(s.basePath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching session: adding %s: %w", s.basePath, err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != SessionFileName {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				sess, err := s.Get()
				if err != nil {
					// Partial writes are not possible; a parse error means a foreign file.
					s.logger.Warn("re-reading session after change", zap.Error(err))
					continue
				}
				s.notify(sess)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("session watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// notify delivers sess to every subscriber, replacing any undelivered value.
// Repeats of the last delivered session are suppressed so a same-process
// write is not announced twice when the watcher sees it too.
func (s *fileSessionStore) notify(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastNotified != nil && sameSession(*s.lastNotified, sess) {
		return
	}
	s.lastNotified = &sess

	for _, ch := range s.subs {
		select {
		case ch <- sess:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- sess:
			default:
			}
		}
	}
}

func sameSession(a, b models.Session) bool {
	if a.Token != b.Token || !a.SavedAt.Equal(b.SavedAt) {
		return false
	}
	if (a.User == nil) != (b.User == nil) {
		return false
	}
	return a.User == nil || *a.User == *b.User
}

// withLock runs fn while holding an exclusive flock on the session lock file,
// serializing writers across processes.
func (s *fileSessionStore) withLock(fn func() error) error {
	if err := os.MkdirAll(s.basePath, 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(s.lockPath(), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}
	defer f.Close()

	// syscall.Flock is Unix-specific.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("acquiring session lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) }()

	return fn()
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers see either the old or the new document.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
