// Package filediscovery walks a local workspace and builds the file tree and
// skeletons a plan request carries.
package filediscovery

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/alantheprice/refactord/pkg/codec"
	"github.com/alantheprice/refactord/pkg/planner"
	"github.com/alantheprice/refactord/pkg/utils"
)

// DefaultSkeletonLines is how many leading lines of each file form its skeleton.
const DefaultSkeletonLines = 50

// Options configures a scan.
type Options struct {
	// SkeletonLines caps each skeleton. Zero or less means DefaultSkeletonLines.
	SkeletonLines int
	// Ignore holds extra gitignore-style patterns.
	Ignore []string
	// MaxFileSize skips larger files from skeletons. Zero means no limit.
	MaxFileSize int64
	Logger      *utils.Logger
}

// Workspace is the result of a scan. Paths are slash-separated and relative
// to the scanned root.
type Workspace struct {
	Root      string
	FileTree  []planner.FileTreeEntry
	Skeletons []planner.Skeleton
}

// SkeletonBytes is the encoded size of all skeletons.
func (w *Workspace) SkeletonBytes() int {
	n := 0
	for _, s := range w.Skeletons {
		n += len(s.Content)
	}
	return n
}

// Scan walks root. Ignored paths are excluded from both the tree and the
// skeletons. Binary files appear in the tree without a skeleton.
func Scan(root string, opts Options) (*Workspace, error) {
	if opts.SkeletonLines <= 0 {
		opts.SkeletonLines = DefaultSkeletonLines
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.Discard()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	rules := GetIgnoreRules(abs, opts.Ignore)
	ws := &Workspace{Root: abs}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Logf("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == abs {
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rules.MatchesPath(rel + "/") {
				return filepath.SkipDir
			}
			ws.FileTree = append(ws.FileTree, planner.FileTreeEntry{Path: rel, Kind: planner.KindDir})
			return nil
		}
		if !d.Type().IsRegular() || rules.MatchesPath(rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		ws.FileTree = append(ws.FileTree, planner.FileTreeEntry{Path: rel, Kind: planner.KindFile, Size: fi.Size()})
		if opts.MaxFileSize > 0 && fi.Size() > opts.MaxFileSize {
			return nil
		}

		head, err := readHead(path, opts.SkeletonLines)
		if err != nil {
			logger.Logf("skipping skeleton for %s: %v", rel, err)
			return nil
		}
		if isBinary(head) {
			return nil
		}
		ws.Skeletons = append(ws.Skeletons, planner.Skeleton{Path: rel, Content: codec.Encode(head)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(ws.FileTree, func(i, j int) bool { return ws.FileTree[i].Path < ws.FileTree[j].Path })
	sort.Slice(ws.Skeletons, func(i, j int) bool { return ws.Skeletons[i].Path < ws.Skeletons[j].Path })
	return ws, nil
}

// readHead returns at most n lines from the start of path.
func readHead(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	reader := bufio.NewReader(f)
	for i := 0; i < n; i++ {
		line, err := reader.ReadString('\n')
		sb.WriteString(line)
		if err != nil {
			break
		}
	}
	return sb.String(), nil
}

func isBinary(text string) bool {
	return bytes.IndexByte([]byte(text), 0) >= 0 || !utf8.ValidString(text)
}
