// Package open launches a transcript file in the user's editor.
package open

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Transcript opens the root-relative transcript in $EDITOR (less when
// unset).
func Transcript(root, relPath string) error {
	filePath := filepath.Join(root, filepath.FromSlash(relPath))
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file not found: %s", filePath)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	cmd := exec.Command(editor, filePath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
