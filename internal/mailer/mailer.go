// Package mailer renders comment notifications and hands them to a Sender.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/Guyuepp/go-comment-engine/domain"
)

// SubjectToken marks the comment a mail is about. Replying to the mail keeps
// the token in the subject, which is how email replies find their parent.
const SubjectToken = "[comment#%d]"

//go:embed templates/*.html
var templateFS embed.FS

// ErrNoRecipient is returned when the recipient has no email address
var ErrNoRecipient = errors.New("recipient has no email address")

type mailer struct {
	sender  Sender
	siteURL string
	tpl     *template.Template
	md      goldmark.Markdown
	policy  *bluemonday.Policy
}

var _ domain.Mailer = (*mailer)(nil)

// New returns a domain.Mailer. siteURL prefixes the comment links in the mails.
func New(sender Sender, siteURL string) (*mailer, error) {
	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail templates: %w", err)
	}
	return &mailer{
		sender:  sender,
		siteURL: strings.TrimRight(siteURL, "/"),
		tpl:     tpl,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
	}, nil
}

type replyData struct {
	Author     string
	Recipient  string
	Body       template.HTML
	ParentBody template.HTML
	Link       string
}

type profileData struct {
	Author    string
	Recipient string
	Body      template.HTML
	Link      string
}

func (m *mailer) NotifyReply(ctx context.Context, author domain.User, comment domain.Comment, parentAuthor domain.User, parentComment domain.Comment) error {
	body, err := m.render("reply.html", replyData{
		Author:     displayName(author),
		Recipient:  displayName(parentAuthor),
		Body:       m.markdown(comment.Comment),
		ParentBody: m.markdown(parentComment.Comment),
		Link:       m.link(comment),
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf(SubjectToken+" %s replied to your comment", comment.ID, displayName(author))
	return m.send(ctx, parentAuthor, subject, body)
}

func (m *mailer) NotifyProfileComment(ctx context.Context, author domain.User, comment domain.Comment, profileOwner domain.User) error {
	body, err := m.render("profile.html", profileData{
		Author:    displayName(author),
		Recipient: displayName(profileOwner),
		Body:      m.markdown(comment.Comment),
		Link:      m.link(comment),
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf(SubjectToken+" %s commented on your profile", comment.ID, displayName(author))
	return m.send(ctx, profileOwner, subject, body)
}

func (m *mailer) send(ctx context.Context, to domain.User, subject, body string) error {
	if to.Email == "" {
		return fmt.Errorf("user %d: %w", to.ID, ErrNoRecipient)
	}
	return m.sender.Send(ctx, Message{To: to.Email, Subject: subject, HTML: body})
}

func (m *mailer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// markdown renders a comment body; the output is sanitized before it reaches a template
func (m *mailer) markdown(source string) template.HTML {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return template.HTML(m.policy.Sanitize(template.HTMLEscapeString(source)))
	}
	return template.HTML(m.policy.SanitizeBytes(buf.Bytes()))
}

func (m *mailer) link(c domain.Comment) string {
	return m.siteURL + (&url.URL{Path: c.Page, Fragment: fmt.Sprintf("comment-%d", c.ID)}).String()
}

func displayName(u domain.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.Handle
}
