package models

import "time"

// PostLog stores information about a post published to the channel.
type PostLog struct {
	SubmissionID  string    `bson:"submission_id,omitempty"`
	SubmitterID   int64     `bson:"submitter_id"`
	Username      string    `bson:"username,omitempty"`
	Caption       string    `bson:"caption,omitempty"`
	MessageType   string    `bson:"message_type"` // "photo" or "media_group"
	FileCount     int       `bson:"file_count"`
	SubmittedAt   time.Time `bson:"submitted_at"`
	PublishedAt   time.Time `bson:"published_at"`
	ChannelID     int64     `bson:"channel_id"`
	ChannelPostID int       `bson:"channel_post_id,omitempty"`
	AutoPublished bool      `bson:"auto_published"` // true when the auto-pull engine published it
}
