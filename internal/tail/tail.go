// Package tail reads the trailing lines of text files. Files above a size
// threshold are read from a computed offset instead of in full, so a request
// for the last few lines of a multi-gigabyte log stays cheap.
package tail

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultMaxLines is the line count used when the caller does not ask
	// for a specific amount.
	DefaultMaxLines = 50

	// DefaultBytesPerLine is the assumed average line length used to bound
	// how much of a large file gets read. Files whose real average exceeds
	// it may return fewer lines than requested.
	DefaultBytesPerLine = 100

	// sizeThreshold is the file size above which the bounded read kicks in.
	sizeThreshold = 1 << 20
)

var (
	ErrNotFound   = errors.New("log file not found")
	ErrNotAFile   = errors.New("path is not a file")
	ErrPermission = errors.New("permission denied")
)

// Options tune the bounded-tail heuristic.
type Options struct {
	// BytesPerLine overrides DefaultBytesPerLine when positive.
	BytesPerLine int
}

// Result holds the retained lines of one read, oldest first.
type Result struct {
	Path  string
	Lines []string
}

// Empty reports whether the read produced no non-blank lines.
func (r Result) Empty() bool { return len(r.Lines) == 0 }

// Render formats the result as a header plus a fenced block of the lines.
func (r Result) Render() string {
	if r.Empty() {
		return fmt.Sprintf("Log file is empty: %s", r.Path)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📄 **%s** (last %d lines):\n", r.Path, len(r.Lines))
	sb.WriteString("```\n")
	sb.WriteString(strings.Join(r.Lines, "\n"))
	sb.WriteString("\n```")
	return sb.String()
}

// Read returns at most maxLines trailing non-blank lines of the file at path,
// right-trimmed, in file order. Invalid byte sequences are dropped rather
// than surfaced as errors. A maxLines of zero or less yields an empty result
// without error; a file holding only blank lines does the same.
func Read(path string, maxLines int, opts Options) (Result, error) {
	res := Result{Path: path}
	if maxLines <= 0 {
		return res, nil
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return res, fmt.Errorf("resolve %s: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = real
	}

	info, err := os.Stat(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return res, fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return res, fmt.Errorf("%w reading %s", ErrPermission, path)
	case err != nil:
		return res, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return res, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}

	f, err := os.Open(resolved)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return res, fmt.Errorf("%w reading %s", ErrPermission, path)
	case err != nil:
		return res, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bytesPerLine := opts.BytesPerLine
	if bytesPerLine <= 0 {
		bytesPerLine = DefaultBytesPerLine
	}

	var raw []byte
	size := info.Size()
	if size > sizeThreshold {
		offset := size - int64(maxLines)*int64(bytesPerLine)
		if offset < 0 {
			offset = 0
		}
		raw, err = io.ReadAll(io.NewSectionReader(f, offset, size-offset))
	} else {
		raw, err = io.ReadAll(f)
	}
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	// Blank lines are dropped before slicing so a trailing newline or an
	// interleaved blank never displaces a real line from the requested count.
	segments := strings.Split(strings.ToValidUTF8(string(raw), ""), "\n")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimRight(seg, " \t\r")
		if strings.TrimSpace(seg) == "" {
			continue
		}
		kept = append(kept, seg)
	}
	if len(kept) > maxLines {
		kept = kept[len(kept)-maxLines:]
	}
	if len(kept) > 0 {
		res.Lines = kept
	}
	return res, nil
}
