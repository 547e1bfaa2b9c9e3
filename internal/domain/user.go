package domain

// User is a reference entity owning accounts. The core never mutates it.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
