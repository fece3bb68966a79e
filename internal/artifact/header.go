// Package artifact renders conversations to on-disk Markdown files and
// reads their metadata back. The target directory's existing files are the
// only persisted state: each header carries everything the next run needs.
package artifact

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// headerLimit bounds how much of a file is read when recovering metadata.
const headerLimit = 8 << 10

// Header is the YAML frontmatter embedded in every exported file. Struct
// order is on-disk order. Parsing tolerates fields it does not recognize.
type Header struct {
	Title       string   `yaml:"title"`
	ID          string   `yaml:"id"`
	Fingerprint string   `yaml:"fingerprint"`
	Updated     string   `yaml:"updated"`
	Model       string   `yaml:"model,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Git         *GitInfo `yaml:"git,omitempty"`
}

// GitInfo is the pass-through version-control provenance block.
type GitInfo struct {
	Path   string `yaml:"path"`
	Remote string `yaml:"remote,omitempty"`
	Branch string `yaml:"branch,omitempty"`
	Commit string `yaml:"commit,omitempty"`
}

// ErrNoHeader reports a file without a parseable frontmatter block.
var ErrNoHeader = errors.New("no artifact header")

// ParseHeader reads the frontmatter block from the start of r.
func ParseHeader(r io.Reader) (*Header, error) {
	scanner := bufio.NewScanner(io.LimitReader(r, headerLimit))

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		return nil, ErrNoHeader
	}

	var block strings.Builder
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		block.WriteString(line)
		block.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !closed {
		return nil, ErrNoHeader
	}

	var h Header
	if err := yaml.Unmarshal([]byte(block.String()), &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoHeader, err)
	}
	if h.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrNoHeader)
	}
	return &h, nil
}

// ParseHeaderFile reads the frontmatter of the file at path.
func ParseHeaderFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseHeader(f)
}

// Existing is one previously exported artifact found in the target directory.
type Existing struct {
	Path   string
	Stem   string
	Header *Header
}

// ScanDir indexes every readable artifact in dir. Files without a valid
// header are not ours and are ignored. A missing directory is an empty index.
func ScanDir(dir string) ([]Existing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan target dir: %w", err)
	}

	var found []Existing
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		path := filepath.Join(dir, name)
		h, err := ParseHeaderFile(path)
		if err != nil {
			continue
		}
		found = append(found, Existing{
			Path:   path,
			Stem:   strings.TrimSuffix(name, ".md"),
			Header: h,
		})
	}
	return found, nil
}
