package domain

// User represents a user in the system.
type User struct {
	BaseModel
	Name         string `gorm:"size:100;not null" json:"name"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255" json:"-"`
}

// Post is a piece of content written by a User.
type Post struct {
	BaseModel
	UUID     string `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	Title    string `gorm:"size:200;not null" json:"title"`
	Body     string `gorm:"type:text" json:"body"`
	AuthorID uint   `gorm:"index;not null" json:"author_id"`
}
