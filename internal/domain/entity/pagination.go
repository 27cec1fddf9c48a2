package entity

// PaginationParams represents limit/offset request parameters
type PaginationParams struct {
	Limit  int `json:"limit" query:"limit"`
	Offset int `json:"offset" query:"offset"`
}

// PaginationMeta represents pagination metadata in responses
type PaginationMeta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Count  int   `json:"count"`
}

// Pagination constants
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	MinPageSize     = 1
)

// Validate validates and normalizes pagination parameters
func (p *PaginationParams) Validate() {
	if p.Limit < MinPageSize {
		p.Limit = DefaultPageSize
	} else if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}

	if p.Offset < 0 {
		p.Offset = 0
	}
}

// NewPaginationMeta creates pagination metadata from parameters, total count and page size
func NewPaginationMeta(params PaginationParams, total int64, count int) PaginationMeta {
	return PaginationMeta{
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
		Count:  count,
	}
}
