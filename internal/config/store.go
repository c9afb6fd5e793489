package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// Store is the sole writer to the configuration directory. Each document has
// a fixed filename; saves are serialized per-kind (different kinds proceed in
// parallel) and always leave a timestamped backup of the prior content.
type Store struct {
	dir string

	mu    sync.Mutex // protects the locks map itself
	locks map[Kind]*sync.Mutex
}

// NewStore creates a Store rooted at dir, creating the directory if absent.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir %s: %w", dir, err)
	}
	return &Store{dir: dir, locks: make(map[Kind]*sync.Mutex)}, nil
}

// Dir returns the configuration directory path.
func (s *Store) Dir() string { return s.dir }

func (s *Store) lockFor(kind Kind) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[kind]
	if !ok {
		l = &sync.Mutex{}
		s.locks[kind] = l
	}
	return l
}

func (s *Store) path(kind Kind) string {
	return filepath.Join(s.dir, kind.FileName())
}

// Load reads and validates the document for kind. If the file is absent, the
// embedded seed default is written and returned. Parse or schema failures
// return *InvalidError.
func (s *Store) Load(kind Kind) ([]byte, error) {
	l := s.lockFor(kind)
	l.Lock()
	defer l.Unlock()

	path := s.path(kind)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		seed, serr := seedBytes(kind)
		if serr != nil {
			return nil, &NotFoundError{Kind: kind}
		}
		if werr := os.WriteFile(path, seed, 0o644); werr != nil {
			return nil, fmt.Errorf("write seed default for %s: %w", kind, werr)
		}
		logging.Info("ConfigStore", "wrote seed default for %s at %s", kind, path)
		data = seed
	} else if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := validateDocument(kind, data); err != nil {
		return nil, &InvalidError{Kind: kind, Reason: err.Error()}
	}

	return data, nil
}

// Save validates document, backs up the prior content, then atomically
// replaces it. If any step after the backup fails, the prior content is
// restored and SaveRolledBackError is returned.
func (s *Store) Save(kind Kind, document []byte) error {
	l := s.lockFor(kind)
	l.Lock()
	defer l.Unlock()

	if err := validateDocument(kind, document); err != nil {
		return &InvalidError{Kind: kind, Reason: err.Error()}
	}

	path := s.path(kind)
	prior, readErr := os.ReadFile(path)
	hadPrior := readErr == nil

	var backupPath string
	if hadPrior {
		backupPath = fmt.Sprintf("%s.%d.bak", path, time.Now().UnixNano())
		if err := os.WriteFile(backupPath, prior, 0o644); err != nil {
			return fmt.Errorf("write backup for %s: %w", kind, err)
		}
	}

	if err := s.atomicWrite(path, document); err != nil {
		if hadPrior {
			if restoreErr := os.WriteFile(path, prior, 0o644); restoreErr != nil {
				return fmt.Errorf("save %s failed (%w) and restore failed: %v", kind, err, restoreErr)
			}
		}
		return &SaveRolledBackError{Kind: kind, Reason: err.Error()}
	}

	logging.Info("ConfigStore", "saved %s to %s (backup %s)", kind, path, backupPath)
	return nil
}

// atomicWrite writes data to a temp file in the same directory, fsyncs it,
// then renames it over path so readers never observe a partial write.
func (s *Store) atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// List returns the filenames of backups currently on disk for kind, newest
// first, for diagnostics.
func (s *Store) List(kind Kind) ([]string, error) {
	pattern := filepath.Join(s.dir, kind.FileName()+".*.bak")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
		matches[i], matches[j] = matches[j], matches[i]
	}
	return matches, nil
}

// LoadInstances is a typed convenience wrapper over Load(KindInstances).
func (s *Store) LoadInstances() (InstancesDocument, error) {
	data, err := s.Load(KindInstances)
	if err != nil {
		return InstancesDocument{}, err
	}
	var doc InstancesDocument
	_ = json.Unmarshal(data, &doc) // already validated by Load
	return doc, nil
}

// LoadTools is a typed convenience wrapper over Load(KindTools).
func (s *Store) LoadTools() (ToolsDocument, error) {
	data, err := s.Load(KindTools)
	if err != nil {
		return ToolsDocument{}, err
	}
	var doc ToolsDocument
	_ = json.Unmarshal(data, &doc)
	return doc, nil
}

// LoadPrompts is a typed convenience wrapper over Load(KindPrompts).
func (s *Store) LoadPrompts() (PromptsDocument, error) {
	data, err := s.Load(KindPrompts)
	if err != nil {
		return PromptsDocument{}, err
	}
	var doc PromptsDocument
	_ = json.Unmarshal(data, &doc)
	return doc, nil
}

// LoadServerMetadata is a typed convenience wrapper over Load(KindServer).
func (s *Store) LoadServerMetadata() (ServerMetadata, error) {
	data, err := s.Load(KindServer)
	if err != nil {
		return ServerMetadata{}, err
	}
	var doc ServerMetadata
	_ = json.Unmarshal(data, &doc)
	return doc, nil
}

// validateDocument parses and validates raw document bytes for kind.
func validateDocument(kind Kind, data []byte) error {
	switch kind {
	case KindInstances:
		var doc InstancesDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse error: %w", err)
		}
		if err := ValidateInstances(doc); err != nil {
			return err
		}
	case KindTools:
		var doc ToolsDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse error: %w", err)
		}
		if err := ValidateTools(doc); err != nil {
			return err
		}
	case KindPrompts:
		var doc PromptsDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse error: %w", err)
		}
		if err := ValidatePrompts(doc); err != nil {
			return err
		}
	case KindServer:
		var doc ServerMetadata
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse error: %w", err)
		}
		if err := ValidateServerMetadata(doc); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown config kind %q", kind)
	}
	return nil
}
