// Package avatar locates user pictures on the static file host.
package avatar

import (
	"strings"
	"unicode/utf8"

	"github.com/Guyuepp/go-comment-engine/domain"
)

type resolver struct {
	kind string
}

var _ domain.AvatarResolver = (*resolver)(nil)

// NewResolver returns the resolver for user avatars
func NewResolver() *resolver {
	return &resolver{kind: "user"}
}

// Dir returns "/users/<first letter>/<handle>"
func (r *resolver) Dir(handle string) string {
	first, _ := utf8.DecodeRuneInString(handle)
	prefix := ""
	if first != utf8.RuneError {
		prefix = strings.ToLower(string(first))
	}
	return "/" + r.kind + "s/" + prefix + "/" + handle
}

// PicturePath is the public URL path of a user's picture
func PicturePath(r domain.AvatarResolver, handle, picture string) string {
	return "/static" + r.Dir(handle) + "/" + picture
}
