package engine

// Default configuration values.
const (
	DefaultBlockSize     = 1000
	DefaultCacheCapacity = 6
	DefaultMaxHistory    = 200
)

// Option configures a Document during creation.
type Option func(*Document)

// WithBlockSize sets the maximum lines per stored block.
func WithBlockSize(n int) Option {
	return func(d *Document) {
		if n > 0 {
			d.blockSize = n
		}
	}
}

// WithCacheCapacity sets how many decoded blocks stay resident.
func WithCacheCapacity(n int) Option {
	return func(d *Document) {
		if n > 0 {
			d.cacheCap = n
		}
	}
}

// WithMaxHistory sets the maximum number of undo history entries.
func WithMaxHistory(n int) Option {
	return func(d *Document) {
		if n > 0 {
			d.maxHistory = n
		}
	}
}

// WithBaseDir places the session's block directory under dir instead of
// the system temp directory.
func WithBaseDir(dir string) Option {
	return func(d *Document) {
		if dir != "" {
			d.baseDir = dir
		}
	}
}
