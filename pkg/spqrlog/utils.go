package spqrlog

import (
	"io"
	"os"
)

// newWriter creates a new file writer based on the provided filepath.
// If the filepath is empty, it returns os.Stdout as the writer.
// Otherwise, it opens the file with the given filepath in append mode,
// creating the file if it doesn't exist.
func newWriter(filepath string) (io.Writer, error) {
	if filepath == "" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return f, nil
}
