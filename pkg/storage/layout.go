package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// CategoryLayout manages the server data root: one subdirectory per file
// category plus the control files the ownership maps and client list
// persist into. A file's category is fixed when it is first uploaded and
// never moves.
type CategoryLayout struct {
	root        string
	categories  []string
	controlFile string
	clientsFile string
	logger      *zap.Logger
}

// Extension-to-category routing for uploads. Anything unmatched lands in
// the last configured category.
var extensionCategories = map[string]string{
	".txt":  "documents",
	".md":   "documents",
	".pdf":  "documents",
	".doc":  "documents",
	".docx": "documents",
	".odt":  "documents",
	".png":  "images",
	".jpg":  "images",
	".jpeg": "images",
	".gif":  "images",
	".bmp":  "images",
	".svg":  "images",
	".mp3":  "music",
	".wav":  "music",
	".flac": "music",
	".ogg":  "music",
	".mp4":  "videos",
	".avi":  "videos",
	".mkv":  "videos",
	".mov":  "videos",
}

// NewCategoryLayout describes a data root with the given category names.
func NewCategoryLayout(root string, categories []string, controlFile, clientsFile string, logger *zap.Logger) *CategoryLayout {
	return &CategoryLayout{
		root:        root,
		categories:  categories,
		controlFile: controlFile,
		clientsFile: clientsFile,
		logger:      logger,
	}
}

// Root returns the server data root directory.
func (l *CategoryLayout) Root() string {
	return l.root
}

// Categories returns the configured category names in order.
func (l *CategoryLayout) Categories() []string {
	return l.categories
}

// ControlFileName returns the per-category ownership control file name.
func (l *CategoryLayout) ControlFileName() string {
	return l.controlFile
}

// ClientsFilePath returns the path of the persisted client list.
func (l *CategoryLayout) ClientsFilePath() string {
	return filepath.Join(l.root, l.clientsFile)
}

// Dir returns the directory of a category.
func (l *CategoryLayout) Dir(category string) string {
	return filepath.Join(l.root, category)
}

// Bootstrap creates the data root, the category directories and empty
// control files where they do not exist yet.
func (l *CategoryLayout) Bootstrap() error {
	if err := os.MkdirAll(l.root, 0755); err != nil {
		return fmt.Errorf("failed to create data root %s: %w", l.root, err)
	}
	for _, category := range l.categories {
		dir := l.Dir(category)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create category directory %s: %w", dir, err)
		}
		if err := touch(filepath.Join(dir, l.controlFile)); err != nil {
			return err
		}
	}
	if err := touch(l.ClientsFilePath()); err != nil {
		return err
	}
	l.logger.Info("data root ready",
		zap.String("root", l.root),
		zap.Strings("categories", l.categories))
	return nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f.Close()
}

// CategoryFor picks the category a new upload belongs to, based on the
// file extension. Unmatched extensions go to the last category.
func (l *CategoryLayout) CategoryFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if category, ok := extensionCategories[ext]; ok {
		for _, configured := range l.categories {
			if configured == category {
				return category
			}
		}
	}
	return l.categories[len(l.categories)-1]
}

// WriteFile stores an uploaded file's bytes in the category directory.
func (l *CategoryLayout) WriteFile(category, filename string, data []byte) error {
	path := filepath.Join(l.Dir(category), filepath.Base(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// FindFile scans the category directories for the filename and returns the
// category holding it. ok is false when no category has the file.
func (l *CategoryLayout) FindFile(filename string) (category string, ok bool) {
	base := filepath.Base(filename)
	for _, candidate := range l.categories {
		if _, err := os.Stat(filepath.Join(l.Dir(candidate), base)); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// ReadFile loads a stored file's bytes, scanning the categories for it.
func (l *CategoryLayout) ReadFile(filename string) ([]byte, string, error) {
	category, ok := l.FindFile(filename)
	if !ok {
		return nil, "", fmt.Errorf("file %s not found in any category", filename)
	}
	data, err := os.ReadFile(filepath.Join(l.Dir(category), filepath.Base(filename)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return data, category, nil
}
