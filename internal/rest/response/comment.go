package response

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/Guyuepp/go-comment-engine/domain"
)

const (
	DateTimeFormat = "2006-01-02 15:04:05"

	ResultOK    = "ok"
	ResultError = "error"
)

type Comment struct {
	ID         int64           `json:"id"`
	User       int64           `json:"user"`
	Comment    string          `json:"comment"`
	Page       string          `json:"page"`
	Time       string          `json:"time"`
	Status     string          `json:"status"`
	Parent     *int64          `json:"parent"`
	Username   string          `json:"username"`
	UserHandle string          `json:"userhandle"`
	Picture    string          `json:"picture"`
	Badges     json.RawMessage `json:"badges,omitempty"`
	Social     json.RawMessage `json:"social,omitempty"`
	Patron     json.RawMessage `json:"patron,omitempty"`
}

// NewCommentFromDomain: Domain -> Response
func NewCommentFromDomain(v *domain.CommentView) Comment {
	return Comment{
		ID:         v.ID,
		User:       v.UserID,
		Comment:    v.Comment.Comment,
		Page:       v.Page,
		Time:       v.Time.UTC().Format(DateTimeFormat),
		Status:     string(v.Status),
		Parent:     v.ParentID,
		Username:   v.Username,
		UserHandle: v.UserHandle,
		Picture:    v.Picture,
		Badges:     v.Badges,
		Social:     v.Social,
		Patron:     v.Patron,
	}
}

// CommentMap is written as a JSON object keyed by comment id, in slice order
type CommentMap []Comment

func (m CommentMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.FormatInt(m[i].ID, 10))
		buf.WriteString(`":`)
		if err := enc.Encode(&m[i]); err != nil {
			return nil, err
		}
		// Encode terminates every value with a newline
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type CommentList struct {
	Result   string     `json:"result"`
	Count    int        `json:"count"`
	Comments CommentMap `json:"comments"`
}

func NewCommentList(views []domain.CommentView) CommentList {
	comments := make(CommentMap, 0, len(views))
	for i := range views {
		comments = append(comments, NewCommentFromDomain(&views[i]))
	}
	return CommentList{
		Result:   ResultOK,
		Count:    len(comments),
		Comments: comments,
	}
}

type Created struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	ID      int64  `json:"id"`
	// Handle is only set when the owner of a profile page was notified
	Handle string `json:"handle,omitempty"`
}

func NewCreated(res domain.PostResult) Created {
	return Created{
		Result:  ResultOK,
		Message: "comment/created",
		ID:      res.ID,
		Handle:  res.NotifiedProfileHandle,
	}
}

// Status is the body of results that carry only a reason
type Status struct {
	Result  string `json:"result"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}
