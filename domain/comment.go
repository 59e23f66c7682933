package domain

import (
	"context"
	"strings"
	"time"
)

// Status is the moderation state of a comment
type Status string

const (
	StatusActive  Status = "active"
	StatusRemoved Status = "removed" // removed by the owner
	// StatusRestricted means removed by a moderator. Nothing sets it yet.
	StatusRestricted Status = "restricted"
)

// RemovalOutcome tells how a comment left the thread
type RemovalOutcome string

const (
	// RemovalSoftened keeps the row because replies still point at it
	RemovalSoftened RemovalOutcome = "softened"
	RemovalDeleted  RemovalOutcome = "deleted"
)

// ProfilePagePrefix is the page prefix of user profile pages, followed by the handle
const ProfilePagePrefix = "/users/"

// Comment is the stored comment entity.
// ID, UserID, Page, Time and ParentID never change after Create.
type Comment struct {
	ID       int64
	UserID   int64
	Comment  string
	Page     string
	Time     time.Time
	Status   Status
	ParentID *int64
}

// CommentRow is a comment joined with its author's display fields.
// It is a read projection and is never saved back.
type CommentRow struct {
	Comment
	Username   string
	UserHandle string
	Picture    string
	Data       ProfileData
}

// CommentView is a CommentRow formatted for listing
type CommentView struct {
	Comment
	Username   string
	UserHandle string
	Picture    string // full avatar path
	Badges     RawField
	Social     RawField
	Patron     RawField
}

// CanonicalPage strips trailing slashes so "/foo/" and "/foo" are one thread.
// The root page stays "/".
func CanonicalPage(page string) string {
	trimmed := strings.TrimRight(page, "/")
	if trimmed == "" && page != "" {
		return "/"
	}
	return trimmed
}

// ProfileHandle returns the handle H when page is the profile page "/users/H"
func ProfileHandle(page string) (string, bool) {
	page = CanonicalPage(page)
	if !strings.HasPrefix(page, ProfilePagePrefix) {
		return "", false
	}
	handle := page[len(ProfilePagePrefix):]
	if handle == "" || strings.Contains(handle, "/") {
		return "", false
	}
	return handle, true
}

// CommentStore owns comment persistence
type CommentStore interface {
	// Create stores a new active comment and returns it reloaded with author fields.
	// Returns ErrBadParamInput for an empty body or page and
	// ErrParentNotFound when parentID does not exist.
	Create(ctx context.Context, authorID int64, page, body string, parentID *int64) (CommentRow, error)

	// GetByID returns ErrNotFound if the comment doesn't exist.
	GetByID(ctx context.Context, id int64) (CommentRow, error)

	// Save persists the mutable fields (comment, status) only.
	Save(ctx context.Context, c *Comment) error

	// Remove soft-removes c when it has replies and deletes it otherwise.
	// The child check and the write happen atomically.
	Remove(ctx context.Context, c Comment) (RemovalOutcome, error)
}

// CommentQuery is the read-only listing side of the store
type CommentQuery interface {
	FetchByPage(ctx context.Context, page string) ([]CommentRow, error)
	FetchByUser(ctx context.Context, userID int64) ([]CommentRow, error)
	// FetchRecent returns at most limit rows, newest first
	FetchRecent(ctx context.Context, limit int) ([]CommentRow, error)
}

// CommentRepository is what the use cases get wired with
type CommentRepository interface {
	CommentStore
	CommentQuery
}

// CommentCache caches listing results by key.
// Each key has a generation that Invalidate bumps. A list stored for an older
// generation reads as a miss, so a load that raced with a write is never served.
type CommentCache interface {
	// GetList returns ErrCacheMiss when key is absent or stale
	GetList(ctx context.Context, key string) ([]CommentRow, error)
	// Generation must be read before loading the rows handed to SetList
	Generation(ctx context.Context, key string) (int64, error)
	SetList(ctx context.Context, key string, gen int64, rows []CommentRow) error
	Invalidate(ctx context.Context, keys ...string) error
}

// CommentQueryUsecase formats listings
type CommentQueryUsecase interface {
	ByPage(ctx context.Context, page string) ([]CommentView, error)
	ByUser(ctx context.Context, userID int64) ([]CommentView, error)
	Recent(ctx context.Context, count int) ([]CommentView, error)
}

// PostResult is returned after a comment is created
type PostResult struct {
	ID int64
	// NotifiedProfileHandle is set when the owner of a profile page was notified
	NotifiedProfileHandle string
}

// CommentUsecase is the comment lifecycle
type CommentUsecase interface {
	Post(ctx context.Context, callerID int64, page, body string, parentID *int64) (PostResult, error)
	Remove(ctx context.Context, callerID int64, commentID int64) (RemovalOutcome, error)
	ReplyByEmail(ctx context.Context, senderEmail, subject, body string) (PostResult, error)

	ListPage(ctx context.Context, page string) ([]CommentView, error)
	ListUser(ctx context.Context, userID int64) ([]CommentView, error)
	ListRecent(ctx context.Context, count int) ([]CommentView, error)
}
