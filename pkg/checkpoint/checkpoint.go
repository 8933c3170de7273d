package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"serpharvest/pkg/logger"
)

// Checkpoint is the durable record of the exact crawl position. It is
// rewritten after every page, so a crash loses at most one page of progress.
// Start always holds the next offset to fetch, not the last one fetched.
type Checkpoint struct {
	Sheet       string `json:"sheet"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Brand       string `json:"brand,omitempty"`
	Start       int    `json:"start"`
	PageNum     int    `json:"page_num"`
	Timestamp   string `json:"timestamp"`
}

// Touch updates the position fields and stamps the record with the current
// UTC time.
func (c *Checkpoint) Touch(subcategory, brand string, start, pageNum int) {
	c.Subcategory = subcategory
	c.Brand = brand
	c.Start = start
	c.PageNum = pageNum
	c.Timestamp = time.Now().UTC().Format(time.RFC3339)
}

// Manager handles checkpoint persistence
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager creates a checkpoint manager for the given file path
func NewManager(path string) *Manager {
	return &Manager{
		path:   path,
		logger: logger.GetLogger(),
	}
}

// Load loads an existing checkpoint. A missing file yields (nil, nil).
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoint exists
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	m.logger.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"sheet":       cp.Sheet,
		"subcategory": cp.Subcategory,
		"brand":       cp.Brand,
		"start":       cp.Start,
		"page_num":    cp.PageNum,
	})

	return &cp, nil
}

// Save saves the checkpoint to disk atomically: the record is written to a
// temporary file, synced, and renamed over the canonical path so no reader
// ever observes a truncated file.
func (m *Manager) Save(cp *Checkpoint) error {
	if dir := filepath.Dir(m.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("checkpoint saved", map[string]interface{}{
		"sheet":       cp.Sheet,
		"subcategory": cp.Subcategory,
		"brand":       cp.Brand,
		"start":       cp.Start,
	})

	return nil
}

// Clear removes the checkpoint file
func (m *Manager) Clear() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("checkpoint cleared")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.path
}
