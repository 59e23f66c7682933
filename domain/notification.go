package domain

import "context"

// NotificationKind is the reason an email goes out
type NotificationKind string

const (
	NotifyReply          NotificationKind = "reply"
	NotifyProfileComment NotificationKind = "profile_comment"
)

// Mailer delivers notification emails. Callers treat it as fire-and-forget:
// an error is logged and never undoes the comment.
type Mailer interface {
	NotifyReply(ctx context.Context, author User, comment Comment, parentAuthor User, parentComment Comment) error
	NotifyProfileComment(ctx context.Context, author User, comment Comment, profileOwner User) error
}

// NotifyResult tells which notifications were requested for a comment
type NotifyResult struct {
	ReplyNotified bool
	// ProfileHandle is the handle of the notified profile owner, "" when none
	ProfileHandle string
}

// NotifyUsecase fans a new comment out to the people who must hear about it
type NotifyUsecase interface {
	// Notify runs the reply and the profile-owner checks. parent is nil for top level comments.
	Notify(ctx context.Context, author User, comment Comment, parent *Comment) NotifyResult
	// NotifyReply emails the parent's author unless author wrote the parent
	NotifyReply(ctx context.Context, author User, comment Comment, parent Comment) bool
}
