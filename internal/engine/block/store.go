package block

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	// DefaultBlockSize is the number of lines in a full block written
	// during file-open streaming.
	DefaultBlockSize = 1000

	// DirPrefix prefixes every session directory name under the base
	// directory.
	DirPrefix = "blockdoc-"

	blockFileExt = ".blk"
)

// Errors returned by block store operations.
var (
	// ErrStoreClosed indicates the session directory has been cleaned up.
	ErrStoreClosed = errors.New("block store closed")

	// ErrEmptyBlock indicates an attempt to persist a block with no lines.
	ErrEmptyBlock = errors.New("empty block")

	// ErrBlockTooLarge indicates a block exceeding the configured size bound.
	ErrBlockTooLarge = errors.New("block exceeds size bound")
)

// FileError wraps an I/O failure on a block or document file.
type FileError struct {
	Op   string // failed operation, e.g. "read" or "write"
	Path string
	Err  error
}

// Error returns a formatted error message.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}

// ID identifies one block within a session. Identifiers are assigned
// sequentially starting at zero and are never reused.
type ID int

// Desc describes a persisted block: its identifier and line count.
type Desc struct {
	ID    ID
	Lines int
}

// Store manages the block files of one editing session.
//
// Writes reserve an identifier under the mutex but perform file I/O outside
// it, so readers are never blocked on a slow disk.
type Store struct {
	mu      sync.Mutex
	dir     string
	size    int
	next    ID
	written int
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithBaseDir places the session directory under dir instead of the
// system temp directory.
func WithBaseDir(dir string) Option {
	return func(s *Store) { s.dir = dir }
}

// WithBlockSize sets the maximum lines per block. Values < 1 are ignored.
func WithBlockSize(n int) Option {
	return func(s *Store) {
		if n >= 1 {
			s.size = n
		}
	}
}

// NewStore creates the session directory and its manifest.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		dir:  os.TempDir(),
		size: DefaultBlockSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dir = filepath.Join(s.dir, DirPrefix+uuid.NewString())
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, &FileError{Op: "create", Path: s.dir, Err: err}
	}
	if err := s.writeManifest(); err != nil {
		os.RemoveAll(s.dir)
		return nil, err
	}
	return s, nil
}

// Dir returns the session directory path.
func (s *Store) Dir() string {
	return s.dir
}

// BlockSize returns the configured maximum lines per block.
func (s *Store) BlockSize() int {
	return s.size
}

// Count returns the number of blocks written so far.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// WriteBlock persists lines as the next sequential block and returns its
// identifier. The group must be non-empty and within the size bound.
func (s *Store) WriteBlock(lines []string) (ID, error) {
	if len(lines) == 0 {
		return 0, ErrEmptyBlock
	}
	if len(lines) > s.size {
		return 0, ErrBlockTooLarge
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrStoreClosed
	}
	id := s.next
	s.next++
	s.mu.Unlock()

	path := s.blockPath(id)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return 0, &FileError{Op: "write", Path: path, Err: err}
	}

	s.mu.Lock()
	s.written++
	s.mu.Unlock()
	return id, nil
}

// WriteAll splits lines at the size bound and persists each group, in order.
// Used when bulk rewrites (such as replace-all) re-chunk original content.
func (s *Store) WriteAll(lines []string) ([]Desc, error) {
	var descs []Desc
	for start := 0; start < len(lines); start += s.size {
		end := min(start+s.size, len(lines))
		id, err := s.WriteBlock(lines[start:end])
		if err != nil {
			return descs, err
		}
		descs = append(descs, Desc{ID: id, Lines: end - start})
	}
	return descs, nil
}

// ReadBlock loads and decodes the lines of one block. A missing or
// unreadable backing file is reported as a *FileError; the caller decides
// whether that means data loss or a fatal failure.
func (s *Store) ReadBlock(id ID) ([]string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	s.mu.Unlock()

	path := s.blockPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Op: "read", Path: path, Err: err}
	}
	return strings.Split(string(data), "\n"), nil
}

// Open streams the document at path into blocks, flushing a full block as
// soon as it reaches the size bound and a final partial block at EOF. It
// returns the descriptors in document order and whether the file ended with
// a newline. An empty file yields no blocks.
func (s *Store) Open(path string) ([]Desc, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, &FileError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	descs, trailing, err := s.Stream(f)
	if err != nil {
		var fe *FileError
		if errors.As(err, &fe) && fe.Path == "" {
			fe.Path = path
		}
		return descs, trailing, err
	}

	s.noteSource(path, len(descs))
	return descs, trailing, nil
}

// Stream consumes src in a single pass, cutting a block every size-bound
// lines and flushing a final partial block at EOF. Used by Open and by
// callers holding content that never touched a file.
func (s *Store) Stream(src io.Reader) ([]Desc, bool, error) {
	var (
		descs    []Desc
		batch    = make([]string, 0, s.size)
		trailing bool
	)
	r := bufio.NewReaderSize(src, 64*1024)
	for {
		seg, rerr := r.ReadString('\n')
		if len(seg) > 0 {
			line, hadNL := strings.CutSuffix(seg, "\n")
			trailing = hadNL
			batch = append(batch, line)
			if len(batch) == s.size {
				id, werr := s.WriteBlock(batch)
				if werr != nil {
					return descs, trailing, werr
				}
				descs = append(descs, Desc{ID: id, Lines: len(batch)})
				batch = batch[:0]
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return descs, trailing, &FileError{Op: "read", Err: rerr}
		}
	}
	if len(batch) > 0 {
		id, werr := s.WriteBlock(batch)
		if werr != nil {
			return descs, trailing, werr
		}
		descs = append(descs, Desc{ID: id, Lines: len(batch)})
	}
	return descs, trailing, nil
}

// Cleanup removes the session directory and everything in it. Idempotent:
// calling it again, or on an already-removed directory, returns nil.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return &FileError{Op: "remove", Path: s.dir, Err: err}
	}
	return nil
}

func (s *Store) blockPath(id ID) string {
	return filepath.Join(s.dir, fmt.Sprintf("%06d%s", id, blockFileExt))
}
