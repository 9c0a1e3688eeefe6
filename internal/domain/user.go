// Package domain contains entity without logic, just meta-data
package domain

const MaxUserIDLen = 64

// UserID is the identity issued by the auth collaborator. The relay never
// generates one.
type UserID string

func (id UserID) Valid() bool {
	return id != "" && len(id) <= MaxUserIDLen
}
