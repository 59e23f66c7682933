package request

import (
	"html"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/microcosm-cc/bluemonday"
)

// scrubber strips every tag from user input
var scrubber = bluemonday.StrictPolicy()

// Comment is the body of POST /comments, sent as a form or as JSON
type Comment struct {
	Page    string `form:"page" json:"page" binding:"required,max=255"`
	Comment string `form:"comment" json:"comment" binding:"required,max=16000"`
	Parent  int64  `form:"parent" json:"parent" binding:"min=0"`
}

// Scrub strips markup from the text fields and validates what is left
func (r *Comment) Scrub() error {
	r.Page = scrub(r.Page)
	r.Comment = scrub(r.Comment)
	return binding.Validator.ValidateStruct(r)
}

// ParentID is nil for top level comments
func (r *Comment) ParentID() *int64 {
	if r.Parent == 0 {
		return nil
	}
	id := r.Parent
	return &id
}

// EmailReply is the inbound mail webhook form (Mailgun field names)
type EmailReply struct {
	Sender  string `form:"sender" binding:"required"`
	Subject string `form:"subject" binding:"required"`
	Body    string `form:"stripped-text" binding:"required,max=16000"`
}

func (r *EmailReply) Scrub() error {
	r.Sender = strings.TrimSpace(r.Sender)
	r.Body = scrub(r.Body)
	return binding.Validator.ValidateStruct(r)
}

// scrubRounds bounds how many layers of entity encoded markup are peeled off
const scrubRounds = 4

// scrub drops tags and gives back plain text. The sanitizer output is entity
// encoded, and decoding it may reveal markup that was itself encoded, so it
// runs until nothing changes.
func scrub(s string) string {
	for range scrubRounds {
		next := html.UnescapeString(scrubber.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	// still peeling markup, keep it entity encoded
	return strings.TrimSpace(scrubber.Sanitize(s))
}
