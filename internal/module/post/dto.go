package post

// PostInput is the writable part of a post record.
type PostInput struct {
	UUID     string `json:"uuid" validate:"omitempty,uuid"`
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body"`
	AuthorID uint   `json:"author_id" validate:"required"`
}

// Computed or server-owned fields dropped from request bodies.
var readOnlyFields = []string{"id", "created_at", "updated_at", "author"}
