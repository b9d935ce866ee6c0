package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Error codes reported in CLI responses.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No batch files found
	ErrCodeReadFailed   = "E004" // Batch file could not be read or decoded
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeConfig       = "E006" // Invalid configuration
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeWorkspace    = "E008" // Database could not be opened or committed
	ErrCodeSchema       = "E009" // Class definitions failed to compile
	ErrCodeApplyIssues  = "E101" // Records rejected by the merge engine
	ErrCodeInvalidBatch = "E102" // Records that would be rejected
)

// batchExts lists the extensions read as batch files when a directory is
// given.
var batchExts = []string{".json", ".yaml", ".yml"}

// LoadError is a path that could not be expanded.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ExpandBatchPaths resolves args to batch files. A file is used as given;
// a directory contributes its batch files, recursively, in lexical order.
func ExpandBatchPaths(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: "no such file or directory", Path: arg}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Path: arg}
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		files, err := FindBatchFiles(arg)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: err.Error(), Path: arg}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no batch files found", Path: arg}
		}
		out = append(out, files...)
	}
	return out, nil
}

// FindBatchFiles returns the .json, .yaml, and .yml files under dir.
// Directories whose name starts with "." or "_" are skipped.
func FindBatchFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != dir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(batchExts, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}
