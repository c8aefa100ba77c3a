package block

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithBaseDir(t.TempDir())}, opts...)
	s, err := NewStore(opts...)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Cleanup() })
	return s
}

func TestWriteAndReadBlock(t *testing.T) {
	s := newTestStore(t)

	lines := []string{"alpha", "beta", "gamma"}
	id, err := s.WriteBlock(lines)
	if err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}
	if id != 0 {
		t.Errorf("expected first id 0, got %d", id)
	}

	got, err := s.ReadBlock(id)
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if len(got) != 3 || got[0] != "alpha" || got[1] != "beta" || got[2] != "gamma" {
		t.Errorf("expected %v, got %v", lines, got)
	}
}

func TestWriteBlockSequentialIDs(t *testing.T) {
	s := newTestStore(t)

	for want := ID(0); want < 3; want++ {
		id, err := s.WriteBlock([]string{"x"})
		if err != nil {
			t.Fatalf("WriteBlock failed: %v", err)
		}
		if id != want {
			t.Errorf("expected id %d, got %d", want, id)
		}
	}
	if s.Count() != 3 {
		t.Errorf("expected 3 blocks written, got %d", s.Count())
	}
}

func TestWriteBlockEmpty(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.WriteBlock(nil); !errors.Is(err, ErrEmptyBlock) {
		t.Errorf("expected ErrEmptyBlock, got %v", err)
	}
}

func TestWriteBlockTooLarge(t *testing.T) {
	s := newTestStore(t, WithBlockSize(2))

	if _, err := s.WriteBlock([]string{"a", "b", "c"}); !errors.Is(err, ErrBlockTooLarge) {
		t.Errorf("expected ErrBlockTooLarge, got %v", err)
	}
}

func TestBlockFileLayout(t *testing.T) {
	s := newTestStore(t)

	id, err := s.WriteBlock([]string{"one", "two"})
	if err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}

	path := filepath.Join(s.Dir(), "000000.blk")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("block file not found at %s: %v", path, err)
	}
	if string(data) != "one\ntwo" {
		t.Errorf("expected newline-joined lines without trailing newline, got %q", data)
	}
	_ = id
}

func TestReadBlockPreservesEmptyLines(t *testing.T) {
	s := newTestStore(t)

	lines := []string{"", "middle", ""}
	id, err := s.WriteBlock(lines)
	if err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}
	got, err := s.ReadBlock(id)
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if len(got) != 3 || got[0] != "" || got[1] != "middle" || got[2] != "" {
		t.Errorf("expected %q, got %q", lines, got)
	}
}

func TestReadBlockMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReadBlock(42)
	if err == nil {
		t.Fatal("expected error for missing block")
	}
	var fe *FileError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FileError, got %T", err)
	}
	if fe.Op != "read" {
		t.Errorf("expected op read, got %q", fe.Op)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected wrapped fs.ErrNotExist, got %v", err)
	}
}

func writeSourceFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	return path
}

func TestOpenSplitsIntoBlocks(t *testing.T) {
	s := newTestStore(t, WithBlockSize(1000))

	var sb strings.Builder
	for i := 1; i <= 2500; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	path := writeSourceFile(t, sb.String())

	descs, trailing, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(descs) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(descs))
	}
	for i, want := range []int{1000, 1000, 500} {
		if descs[i].Lines != want {
			t.Errorf("block %d: expected %d lines, got %d", i, want, descs[i].Lines)
		}
	}
	if !trailing {
		t.Error("expected trailing newline to be detected")
	}

	last, err := s.ReadBlock(descs[2].ID)
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if last[0] != "line 2001" || last[len(last)-1] != "line 2500" {
		t.Errorf("unexpected partial block bounds: first %q last %q", last[0], last[len(last)-1])
	}
}

func TestOpenNoTrailingNewline(t *testing.T) {
	s := newTestStore(t)

	path := writeSourceFile(t, "first\nsecond")
	descs, trailing, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if trailing {
		t.Error("expected no trailing newline")
	}
	if len(descs) != 1 || descs[0].Lines != 2 {
		t.Fatalf("expected one 2-line block, got %+v", descs)
	}
}

func TestOpenEmptyFile(t *testing.T) {
	s := newTestStore(t)

	path := writeSourceFile(t, "")
	descs, trailing, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(descs) != 0 {
		t.Errorf("expected no blocks for empty file, got %d", len(descs))
	}
	if trailing {
		t.Error("expected no trailing newline for empty file")
	}
}

func TestOpenNewlineOnlyFile(t *testing.T) {
	s := newTestStore(t)

	path := writeSourceFile(t, "\n")
	descs, trailing, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(descs) != 1 || descs[0].Lines != 1 {
		t.Fatalf("expected one 1-line block, got %+v", descs)
	}
	if !trailing {
		t.Error("expected trailing newline")
	}
	lines, err := s.ReadBlock(descs[0].ID)
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "" {
		t.Errorf("expected single empty line, got %q", lines)
	}
}

func TestOpenMissingFile(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Open(filepath.Join(t.TempDir(), "absent.txt"))
	var fe *FileError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FileError, got %v", err)
	}
	if fe.Op != "open" {
		t.Errorf("expected op open, got %q", fe.Op)
	}
}

func TestWriteAllRechunks(t *testing.T) {
	s := newTestStore(t, WithBlockSize(2))

	descs, err := s.WriteAll([]string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if len(descs) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(descs))
	}
	for i, want := range []int{2, 2, 1} {
		if descs[i].Lines != want {
			t.Errorf("block %d: expected %d lines, got %d", i, want, descs[i].Lines)
		}
	}
}

func TestWriteAllEmpty(t *testing.T) {
	s := newTestStore(t)

	descs, err := s.WriteAll(nil)
	if err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if len(descs) != 0 {
		t.Errorf("expected no blocks, got %d", len(descs))
	}
}

func TestCleanupIdempotent(t *testing.T) {
	s, err := NewStore(WithBaseDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := s.WriteBlock([]string{"x"}); err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}

	if err := s.Cleanup(); err != nil {
		t.Fatalf("first Cleanup failed: %v", err)
	}
	if _, err := os.Stat(s.Dir()); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected session dir removed, got %v", err)
	}
	if err := s.Cleanup(); err != nil {
		t.Errorf("second Cleanup should be a no-op, got %v", err)
	}
}

func TestStoreClosedAfterCleanup(t *testing.T) {
	s, err := NewStore(WithBaseDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	if _, err := s.WriteBlock([]string{"x"}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on write, got %v", err)
	}
	if _, err := s.ReadBlock(0); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on read, got %v", err)
	}
}

func TestFileErrorFormat(t *testing.T) {
	inner := errors.New("disk gone")
	fe := &FileError{Op: "read", Path: "/tmp/b/000001.blk", Err: inner}

	if !strings.Contains(fe.Error(), "read") || !strings.Contains(fe.Error(), "000001.blk") {
		t.Errorf("unexpected message: %q", fe.Error())
	}
	if !errors.Is(fe, inner) {
		t.Error("expected FileError to unwrap to inner error")
	}
}

func TestStreamFromReader(t *testing.T) {
	s := newTestStore(t, WithBlockSize(2))

	descs, trailing, err := s.Stream(strings.NewReader("a\nb\nc"))
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if trailing {
		t.Error("expected no trailing newline")
	}
	if len(descs) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(descs))
	}
	if descs[0].Lines != 2 || descs[1].Lines != 1 {
		t.Errorf("expected line counts 2 and 1, got %d and %d", descs[0].Lines, descs[1].Lines)
	}

	got, err := s.ReadBlock(descs[1].ID)
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if len(got) != 1 || got[0] != "c" {
		t.Errorf("expected [c], got %v", got)
	}
}
