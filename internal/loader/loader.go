// Package loader discovers and reads documents from a codebase root. It
// applies the ignore policy, rejects binary files, and detects each file's
// language from its extension. The rest of the pipeline treats its output
// as an opaque, finite, restartable sequence of documents.
package loader

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/grepvec/grepvec/internal/config"
	"github.com/grepvec/grepvec/pkg/types"
)

// MaxFileSizeBytes caps the size of a single loaded document. Larger files
// are almost always generated artifacts, not code worth retrieving.
const MaxFileSizeBytes = 4 << 20

// Loader walks a root directory and produces documents.
type Loader struct {
	root        string
	ignoreDirs  map[string]struct{}
	ignoreFiles map[string]struct{}
	log         *slog.Logger
}

// New creates a Loader for the given root with the configured ignore policy.
func New(root string, cfg config.Loader, log *slog.Logger) *Loader {
	l := &Loader{
		root:        root,
		ignoreDirs:  make(map[string]struct{}, len(cfg.IgnoreDirs)),
		ignoreFiles: make(map[string]struct{}, len(cfg.IgnoreFiles)),
		log:         log,
	}
	for _, d := range cfg.IgnoreDirs {
		l.ignoreDirs[d] = struct{}{}
	}
	for _, f := range cfg.IgnoreFiles {
		l.ignoreFiles[f] = struct{}{}
	}
	return l
}

// Load walks the root and returns all loadable documents in deterministic
// (lexical walk) order. Unreadable and binary files are skipped with a
// warning, not an error: one bad file must not block ingestion.
func (l *Loader) Load() ([]types.Document, error) {
	var docs []types.Document

	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == l.root {
				return nil
			}
			if _, ok := l.ignoreDirs[d.Name()]; ok {
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := l.ignoreFiles[d.Name()]; ok {
			return nil
		}

		doc, err := l.loadFile(path)
		if err != nil {
			l.log.Warn("skipping file", "path", path, "reason", err)
			return nil
		}

		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", l.root, err)
	}

	return docs, nil
}

// LoadFile loads a single document by path. Used by watch mode to re-ingest
// individual changed files.
func (l *Loader) LoadFile(path string) (types.Document, error) {
	if _, ok := l.ignoreFiles[filepath.Base(path)]; ok {
		return types.Document{}, fmt.Errorf("path %s is ignored", path)
	}
	return l.loadFile(path)
}

func (l *Loader) loadFile(path string) (types.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.Document{}, err
	}
	if info.Size() > MaxFileSizeBytes {
		return types.Document{}, fmt.Errorf("file exceeds %d bytes", MaxFileSizeBytes)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, err
	}

	// Non-UTF-8 content means a binary file; there is nothing to embed.
	if !utf8.Valid(raw) || strings.ContainsRune(string(raw), 0) {
		return types.Document{}, fmt.Errorf("not valid UTF-8 text")
	}

	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		rel = path
	}

	return types.Document{
		Path:     filepath.ToSlash(rel),
		Text:     string(raw),
		Language: DetectLanguage(path),
	}, nil
}

// DetectLanguage maps a file extension to a language tag stored in record
// metadata. Unknown extensions fall back to "text".
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".py":
		return "python"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".java":
		return "java"
	case ".c":
		return "c"
	case ".cpp", ".cc", ".h", ".hpp":
		return "cpp"
	case ".md":
		return "markdown"
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".sql":
		return "sql"
	case ".sh":
		return "shell"
	default:
		return "text"
	}
}
