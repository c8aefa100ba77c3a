package chunk

// LineIter streams logical lines in document order, resolving each block
// chunk once as the walk enters it. It must not be used across mutations of
// the underlying list; background readers iterate a Clone.
type LineIter struct {
	list   *List
	r      Resolver
	chunk  int
	local  int
	cur    []string
	loaded bool
	line   string
	err    error
}

// Next advances to the next line, returning false at the end of the
// document or on the first resolver failure.
func (it *LineIter) Next() bool {
	if it.err != nil {
		return false
	}
	for {
		if !it.loaded {
			if it.chunk >= it.list.Len() {
				return false
			}
			lines, err := it.list.At(it.chunk).Resolve(it.r)
			if err != nil {
				it.err = err
				return false
			}
			it.cur = lines
			it.local = 0
			it.loaded = true
		}
		if it.local < len(it.cur) {
			it.line = it.cur[it.local]
			it.local++
			return true
		}
		it.chunk++
		it.loaded = false
	}
}

// Line returns the current line. Valid only after a true Next.
func (it *LineIter) Line() string {
	return it.line
}

// Err returns the resolver failure that stopped the walk, if any.
func (it *LineIter) Err() error {
	return it.err
}
