package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

// FileStore keeps the session as a JSON file readable only by the owner.
type FileStore struct {
	path string
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", ".eteeap", "session.json")
	}
	return filepath.Join(home, ".eteeap", "session.json")
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (domain.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Session{}, domain.WrapError(domain.ErrNoSession, "load session", err)
		}
		return domain.Session{}, fmt.Errorf("read session file: %w", err)
	}
	return decode(data)
}

// Save writes through a temp file so a crash never leaves a torn session.
func (s *FileStore) Save(_ context.Context, sess domain.Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func encode(sess domain.Session) ([]byte, error) {
	if !sess.HasApplicant() && sess.EvaluatorID == "" && !sess.IsAdmin {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save session", errors.New("session has no identity"))
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (domain.Session, error) {
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}
