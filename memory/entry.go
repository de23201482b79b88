package memory

import (
	"fmt"
	"os"
	"path/filepath"
)

// Entry is a single fact the user taught the agent.
type Entry struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// Export is a downloadable plain-text rendering of the knowledge base.
type Export struct {
	Filename string
	Body     string
}

// Save writes the export into dir and returns the full path.
func (e Export) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	p := filepath.Join(dir, e.Filename)
	if err := os.WriteFile(p, []byte(e.Body), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return p, nil
}
