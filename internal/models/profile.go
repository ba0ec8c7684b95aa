package models

// ProfileSummary is the public part of a user profile shown in the inbox.
type ProfileSummary struct {
	UserID      string  `db:"user_id" json:"userId"`
	Username    string  `db:"username" json:"username"`
	DisplayName string  `db:"display_name" json:"displayName"`
	AvatarURL   *string `db:"avatar_url" json:"avatarUrl"`
}
