package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/erenuysaldev/Erotify/internal/constants"
)

func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune("<>:\"/\\|?*", r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimRight(mapped, ". ")
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

// StagingPath is the private directory a single job downloads into.
func StagingPath(outputDir, jobID string) string {
	return filepath.Join(outputDir, constants.StagingDir, Sanitize(jobID))
}

// MoveFile renames src to dst, falling back to copy and delete across devices.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, constants.FilePermissions)
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// Promoted is where a staged file ended up. Duplicate means an identical copy
// was already in the library and the staged one was dropped.
type Promoted struct {
	Path      string
	Duplicate bool
}

// Promote moves the regular files in stagingDir accepted by keep into
// outputDir and reports each by its staged name. A nil keep accepts every
// file. A staged file identical to one already in outputDir is dropped in
// favour of the existing copy; a different file with the same name gets a
// numbered suffix. Rejected files stay in staging.
func Promote(stagingDir, outputDir string, keep func(name string) bool) (map[string]Promoted, error) {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := EnsureDir(outputDir); err != nil {
		return nil, err
	}

	promoted := make(map[string]Promoted, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || (keep != nil && !keep(entry.Name())) {
			continue
		}
		src := filepath.Join(stagingDir, entry.Name())
		dst, duplicate, err := destinationFor(src, outputDir, entry.Name())
		if err != nil {
			return promoted, err
		}
		if duplicate {
			_ = RemoveFile(src)
		} else if err := MoveFile(src, dst); err != nil {
			return promoted, err
		}
		promoted[entry.Name()] = Promoted{Path: dst, Duplicate: duplicate}
	}
	return promoted, nil
}

func destinationFor(src, outputDir, name string) (string, bool, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		dst := filepath.Join(outputDir, candidate)

		if _, err := os.Stat(dst); IsNotExist(err) {
			return dst, false, nil
		} else if err != nil {
			return "", false, err
		}

		srcHash, err := HashFile(src)
		if err != nil {
			return "", false, err
		}
		if same, err := VerifyFile(dst, srcHash); err == nil && same {
			return dst, true, nil
		}
	}
}

// CleanupStaging removes a job's staging directory and the shared staging
// root once it is empty.
func CleanupStaging(stagingDir string) error {
	if err := os.RemoveAll(stagingDir); err != nil {
		return err
	}
	return DeleteFolderIfEmpty(filepath.Dir(stagingDir))
}

func RemoveFile(path string) error {
	return os.Remove(path)
}

func DeleteFolderIfEmpty(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dirPath)
	}
	return nil
}

func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func VerifyFile(path, expectedHash string) (bool, error) {
	hash, err := HashFile(path)
	if err != nil {
		return false, err
	}
	return hash == expectedHash, nil
}
