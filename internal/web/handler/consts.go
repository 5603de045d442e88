package handler

const (
	// RootPath is the root path of the route group.
	RootPath = "/"

	// RouterRootPath is the relative root inside an app.Route group.
	RouterRootPath = "/"

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"

	// DefaultPageSize is the default number of items per page.
	DefaultPageSize = 25

	// MaxPageSize caps the page size a client may request.
	MaxPageSize = 100
)

// Pagination reads page/pageSize query values with clamping applied.
type Pagination struct {
	Page     int
	PageSize int
}

// Skip returns the row offset of the current page.
func (p Pagination) Skip() int {
	return (p.Page - 1) * p.PageSize
}
