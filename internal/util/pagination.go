package util

const (
	DefaultPageSize = 4
	MaxPageSize     = 100
)

// Window turns optional skip/first arguments into an offset and limit.
func Window(skip, first *int32) (offset, limit int) {
	limit = DefaultPageSize
	if first != nil {
		limit = int(*first)
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if skip != nil && *skip > 0 {
		offset = int(*skip)
	}
	return offset, limit
}
