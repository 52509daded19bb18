package domain

import "time"

// BaseModel is the common base struct for all domain models.
// It replaces gorm.Model to avoid the implicit soft delete behavior of DeletedAt.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SortDirection is the direction of an ORDER BY term.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// OrderBy is one sort term of a list request.
type OrderBy struct {
	Field     string
	Direction SortDirection
}

// ListQuery is the parsed form of a react-admin list request.
//
// Limit always equals to-from+1 for the requested [from, to] range.
// Filter holds the raw filter object with the free-text key removed; Q holds
// that free-text query when present.
type ListQuery struct {
	Offset int
	Limit  int
	Order  []OrderBy
	Filter map[string]any
	Q      string
}
