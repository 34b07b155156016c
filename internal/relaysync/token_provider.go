package relaysync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// StaticTokenProvider serves a fixed bearer token.
func StaticTokenProvider(token string) NotionTokenProvider {
	token = strings.TrimSpace(token)
	return func(ctx context.Context) (string, error) {
		if token == "" {
			return "", &AuthError{Message: "no destination token configured"}
		}
		return token, nil
	}
}

// FileTokenProvider reads the destination bearer token from a file and
// hot-reloads it when the file changes, so a re-authentication performed
// out of band takes effect without restarting an in-flight job.
type FileTokenProvider struct {
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	token string
}

func NewFileTokenProvider(path string, logger zerolog.Logger) (*FileTokenProvider, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	p := &FileTokenProvider{path: path, logger: logger}
	p.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and secret managers replace the file,
	// which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	p.watcher = watcher
	go p.watch()
	return p, nil
}

func (p *FileTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token == "" {
		return "", &AuthError{Message: "destination token file is empty or missing"}
	}
	return token, nil
}

func (p *FileTokenProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Close()
}

func (p *FileTokenProvider) watch() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				p.reload()
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn().Err(err).Str("path", p.path).Msg("token file watch error")
		}
	}
}

func (p *FileTokenProvider) reload() {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn().Err(err).Str("path", p.path).Msg("token file read failed")
		}
		return
	}
	token := strings.TrimSpace(string(data))
	p.mu.Lock()
	changed := token != p.token
	p.token = token
	p.mu.Unlock()
	if changed {
		p.logger.Info().Str("path", p.path).Msg("destination token reloaded")
	}
}
