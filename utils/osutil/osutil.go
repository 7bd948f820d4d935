package osutil

import (
	"fmt"
	"os"
	"path"
)

// EnsureFilePresent initializes a file and all parent directories for filepath
// if they do not exist. If the file exists, no-ops.
func EnsureFilePresent(filepath string) error {
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		if err := os.MkdirAll(path.Dir(filepath), 0755); err != nil {
			return fmt.Errorf("mkdir: %s", err)
		}
		f, err := os.Create(filepath)
		if err != nil {
			return fmt.Errorf("create: %s", err)
		}
		f.Close()
	} else if err != nil {
		return fmt.Errorf("stat: %s", err)
	}
	return nil
}
