package repository

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithMaxLimit caps the n accepted by TopN.
func WithMaxLimit(limit int) Option {
	return func(s *MemStore) {
		if limit > 0 {
			s.maxLimit = limit
		}
	}
}
