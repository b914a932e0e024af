package towns

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/springfield-ops/townctl/internal/api"
)

// Ext is the extension every town save carries.
const Ext = ".pb"

// LocalFile is a town file on disk that passed validation.
type LocalFile struct {
	Path string
	Name string
	Size int64
}

// ValidateFile checks that path is a regular .pb file no larger than max.
// It never touches the network.
func ValidateFile(path string, max int64) (LocalFile, error) {
	if path == "" {
		return LocalFile{}, api.Invalid("file", "select a town file")
	}
	if !strings.EqualFold(filepath.Ext(path), Ext) {
		return LocalFile{}, api.Invalid("file", "please select a valid .pb file")
	}
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return LocalFile{}, api.Invalid("file", fmt.Sprintf("%s is not a regular file", path))
	}
	if max > 0 && info.Size() > max {
		return LocalFile{}, api.Invalid("file", fmt.Sprintf("file is too large (%s); the limit is %s",
			FormatSize(info.Size()), FormatSize(max)))
	}
	return LocalFile{Path: path, Name: filepath.Base(path), Size: info.Size()}, nil
}

// FormatSize renders n bytes for humans.
func FormatSize(n int64) string {
	switch {
	case n >= MiB:
		return fmt.Sprintf("%.1f MB", float64(n)/MiB)
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// SelectFiles walks root and returns the .pb files whose slash-separated
// path relative to root matches pattern, sorted by path.
func SelectFiles(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "**/*" + Ext
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, api.Invalid("pattern", fmt.Sprintf("invalid glob %q", pattern))
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), Ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		ok, err := doublestar.PathMatch(filepath.FromSlash(pattern), rel)
		if err != nil {
			return err
		}
		if ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("selecting town files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// EmailFromFile derives the owner of a town file from its name, so
// "homer@example.com.pb" belongs to homer@example.com. ok is false when
// the name does not look like an email.
func EmailFromFile(path string) (string, bool) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	at := strings.IndexByte(name, '@')
	if at <= 0 || at == len(name)-1 {
		return "", false
	}
	return name, true
}

// DefaultTownName is the name given to a submission without one.
func DefaultTownName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		local = email
	}
	return local + "'s Town"
}
