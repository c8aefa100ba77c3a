package chunk

import (
	"errors"
	"testing"

	"github.com/dshills/blockdoc/internal/engine/block"
)

// testList builds [block0: a,b,c] [inserted: X,Y] [block1: d,e].
func testList() (*List, *mapResolver) {
	r := &mapResolver{blocks: map[block.ID][]string{
		0: {"a", "b", "c"},
		1: {"d", "e"},
	}}
	l := NewList(
		BlockRef(0, 3),
		Inserted([]string{"X", "Y"}),
		BlockRef(1, 2),
	)
	return l, r
}

func TestTotalLines(t *testing.T) {
	l, r := testList()

	total, err := l.TotalLines(r)
	if err != nil {
		t.Fatalf("TotalLines failed: %v", err)
	}
	if total != 7 {
		t.Errorf("expected 7, got %d", total)
	}
}

func TestLocate(t *testing.T) {
	l, r := testList()

	tests := []struct {
		pos        int
		chunk, loc int
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 1, 0},
		{4, 1, 1},
		{5, 2, 0},
		{6, 2, 1},
	}
	for _, tt := range tests {
		chunk, local, err := l.Locate(tt.pos, r)
		if err != nil {
			t.Fatalf("Locate(%d) failed: %v", tt.pos, err)
		}
		if chunk != tt.chunk || local != tt.loc {
			t.Errorf("Locate(%d): expected (%d,%d), got (%d,%d)",
				tt.pos, tt.chunk, tt.loc, chunk, local)
		}
	}
}

func TestLocateOutOfRange(t *testing.T) {
	l, r := testList()

	if _, _, err := l.Locate(7, r); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange at total, got %v", err)
	}
	if _, _, err := l.Locate(-1, r); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange for negative, got %v", err)
	}
	if _, _, err := NewList().Locate(0, r); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange on empty list, got %v", err)
	}
}

func TestLineAt(t *testing.T) {
	l, r := testList()

	want := []string{"a", "b", "c", "X", "Y", "d", "e"}
	for pos, wantLine := range want {
		got, err := l.LineAt(pos, r)
		if err != nil {
			t.Fatalf("LineAt(%d) failed: %v", pos, err)
		}
		if got != wantLine {
			t.Errorf("LineAt(%d): expected %q, got %q", pos, wantLine, got)
		}
	}
}

func TestLineAtResolverError(t *testing.T) {
	r := &mapResolver{blocks: map[block.ID][]string{}}
	l := NewList(BlockRef(0, 2))

	if _, err := l.LineAt(0, r); err == nil {
		t.Error("expected resolver error to surface")
	}
}

func TestSpliceReplace(t *testing.T) {
	l, r := testList()

	// Replace the middle inserted chunk with three pieces.
	l.Splice(1,
		Inserted([]string{"p"}),
		Inserted([]string{"q"}),
		Inserted([]string{"r"}),
	)
	if l.Len() != 5 {
		t.Fatalf("expected 5 chunks, got %d", l.Len())
	}

	want := []string{"a", "b", "c", "p", "q", "r", "d", "e"}
	total, err := l.TotalLines(r)
	if err != nil || total != len(want) {
		t.Fatalf("expected %d lines, got %d (%v)", len(want), total, err)
	}
	for pos, wantLine := range want {
		got, err := l.LineAt(pos, r)
		if err != nil || got != wantLine {
			t.Errorf("LineAt(%d): expected %q, got %q (%v)", pos, wantLine, got, err)
		}
	}
}

func TestSpliceRemove(t *testing.T) {
	l, r := testList()

	l.Splice(1)
	if l.Len() != 2 {
		t.Fatalf("expected 2 chunks, got %d", l.Len())
	}
	total, err := l.TotalLines(r)
	if err != nil || total != 5 {
		t.Fatalf("expected 5 lines, got %d (%v)", total, err)
	}
	got, err := l.LineAt(3, r)
	if err != nil || got != "d" {
		t.Errorf("expected d at position 3, got %q (%v)", got, err)
	}
}

func TestAppend(t *testing.T) {
	l, r := testList()

	l.Append(InsertedLine("tail"))
	total, err := l.TotalLines(r)
	if err != nil || total != 8 {
		t.Fatalf("expected 8 lines, got %d (%v)", total, err)
	}
	got, err := l.LineAt(7, r)
	if err != nil || got != "tail" {
		t.Errorf("expected tail, got %q (%v)", got, err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	l, _ := testList()
	cl := l.Clone()

	l.At(1).SetLine(0, "mutated")
	if got := cl.At(1).Lines()[0]; got != "X" {
		t.Errorf("clone should be unaffected by edits, got %q", got)
	}

	cl.At(1).SetLine(1, "other")
	if got := l.At(1).Lines()[1]; got != "Y" {
		t.Errorf("original should be unaffected by clone edits, got %q", got)
	}
}

func TestLocateUnsizedBlock(t *testing.T) {
	r := &mapResolver{blocks: map[block.ID][]string{0: {"a", "b"}, 1: {"c"}}}
	l := NewList(BlockRefUnsized(0), BlockRefUnsized(1))

	chunk, local, err := l.Locate(2, r)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if chunk != 1 || local != 0 {
		t.Errorf("expected (1,0), got (%d,%d)", chunk, local)
	}

	// Sizes memoized: another full walk costs no further loads.
	before := r.loads
	if _, err := l.TotalLines(r); err != nil {
		t.Fatalf("TotalLines failed: %v", err)
	}
	if r.loads != before {
		t.Errorf("expected no additional loads, got %d more", r.loads-before)
	}
}

func TestLineIterWalksAllChunks(t *testing.T) {
	l, r := testList()

	var got []string
	it := l.Lines(r)
	for it.Next() {
		got = append(got, it.Line())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator failed: %v", err)
	}

	want := []string{"a", "b", "c", "X", "Y", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestLineIterEmptyList(t *testing.T) {
	it := NewList().Lines(&mapResolver{})
	if it.Next() {
		t.Error("expected no lines")
	}
	if it.Err() != nil {
		t.Errorf("expected nil error, got %v", it.Err())
	}
}

func TestLineIterResolverError(t *testing.T) {
	r := &mapResolver{blocks: map[block.ID][]string{0: {"a"}}}
	l := NewList(BlockRef(0, 1), BlockRefUnsized(99))

	it := l.Lines(r)
	if !it.Next() || it.Line() != "a" {
		t.Fatal("expected first line before the failure")
	}
	if it.Next() {
		t.Error("expected iteration to stop at missing block")
	}
	if it.Err() == nil {
		t.Error("expected Err to report the failed block")
	}
}

func TestLineIterSkipsEmptyChunk(t *testing.T) {
	l := NewList(Inserted([]string{}), InsertedLine("only"))

	var got []string
	it := l.Lines(&mapResolver{})
	for it.Next() {
		got = append(got, it.Line())
	}
	if len(got) != 1 || got[0] != "only" {
		t.Errorf("expected [only], got %v", got)
	}
}
