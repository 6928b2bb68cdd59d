package providers

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// StagedFile is a scoped temporary artifact. Release is safe to call on
// every exit path and more than once.
type StagedFile struct {
	Path     string
	released bool
	log      *zap.SugaredLogger
}

// Stage writes data to a fresh temp file under dir. Callers must defer
// Release so the artifact is removed on success, provider failure and
// unexpected error alike.
func Stage(dir, pattern string, data []byte, log *zap.SugaredLogger) (*StagedFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close staging file: %w", err)
	}

	return &StagedFile{Path: f.Name(), log: log}, nil
}

func (s *StagedFile) Read() ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging file: %w", err)
	}
	return data, nil
}

func (s *StagedFile) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) && s.log != nil {
		s.log.Warnw("Failed to remove staging file", "path", s.Path, "error", err)
	}
}
