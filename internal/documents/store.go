package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

// ErrInvalidFilename is returned for names that would escape the store directory.
var ErrInvalidFilename = errors.New("documents: invalid filename")

// LocalStore writes referral attachments into a web-servable directory.
type LocalStore struct {
	dir        string
	publicPath string
	mirror     *S3Mirror
	logger     *logging.Logger
}

// NewLocalStore creates a store rooted at dir whose files are served under
// publicPath. mirror may be nil.
func NewLocalStore(dir, publicPath string, mirror *S3Mirror, logger *logging.Logger) *LocalStore {
	if logger == nil {
		logger = logging.Default()
	}
	publicPath = "/" + strings.Trim(strings.TrimSpace(publicPath), "/")
	return &LocalStore{
		dir:        dir,
		publicPath: publicPath,
		mirror:     mirror,
		logger:     logger,
	}
}

// Dir returns the directory files are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// PublicPath returns the URL prefix files are served under.
func (s *LocalStore) PublicPath() string {
	return s.publicPath
}

// Save writes data to <dir>/<filename>, creating the directory when absent, and
// returns the public path. An existing file with the same name is overwritten.
func (s *LocalStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	if strings.TrimSpace(s.dir) == "" {
		return "", errors.New("documents: storage directory not configured")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("documents: create dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("documents: write %s: %w", filename, err)
	}

	if s.mirror.Enabled() {
		if err := s.mirror.Upload(ctx, filename, data); err != nil {
			s.logger.Warn("document mirror upload failed", "filename", filename, "error", err)
		}
	}

	return path.Join(s.publicPath, filename), nil
}
