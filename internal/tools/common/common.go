package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile applies KEY=VALUE pairs from path without overriding variables that
// are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open env file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("open env file: %s is a directory", path)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("read env file: %w", err)
	}
	return nil
}

type ciResult struct {
	OK      bool     `json:"ok"`
	Title   string   `json:"title"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// PrintResult writes a command outcome, as one JSON line when ci is set.
func PrintResult(w io.Writer, ci bool, title string, details []string, err error) {
	if ci {
		res := ciResult{OK: err == nil, Title: title, Details: details}
		if err != nil {
			res.Error = err.Error()
		}
		_ = json.NewEncoder(w).Encode(res)
		return
	}
	for _, d := range details {
		fmt.Fprintln(w, d)
	}
	if err != nil {
		fmt.Fprintf(w, "%s: FAILED: %v\n", title, err)
		return
	}
	fmt.Fprintf(w, "%s: ok\n", title)
}
