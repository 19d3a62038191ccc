package models

// Author is the public profile of a post or comment author, resolved from the
// identity provider at read time. It is never persisted.
type Author struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}
