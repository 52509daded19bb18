package user

// UserInput is the writable part of a user record, checked before Create
// and Update.
type UserInput struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// readOnlyFields are dropped from request bodies. post_count is computed,
// react-admin echoes it back on update.
var readOnlyFields = []string{"id", "created_at", "updated_at", "post_count"}
