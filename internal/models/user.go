package models

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// UserKey selects the lookup predicate: ByUsername or ByID
type UserKey interface {
	userKey()
}

type ByUsername string

type ByID int64

func (ByUsername) userKey() {}
func (ByID) userKey()       {}
