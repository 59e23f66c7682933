package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guyuepp/go-comment-engine/domain"
	"github.com/Guyuepp/go-comment-engine/internal/rest/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockUsecase struct {
	postFn   func(ctx context.Context, callerID int64, page, body string, parentID *int64) (domain.PostResult, error)
	removeFn func(ctx context.Context, callerID, commentID int64) (domain.RemovalOutcome, error)
	emailFn  func(ctx context.Context, sender, subject, body string) (domain.PostResult, error)
	pageFn   func(ctx context.Context, page string) ([]domain.CommentView, error)
	userFn   func(ctx context.Context, userID int64) ([]domain.CommentView, error)
	recentFn func(ctx context.Context, count int) ([]domain.CommentView, error)
}

func (m *mockUsecase) Post(ctx context.Context, callerID int64, page, body string, parentID *int64) (domain.PostResult, error) {
	return m.postFn(ctx, callerID, page, body, parentID)
}

func (m *mockUsecase) Remove(ctx context.Context, callerID, commentID int64) (domain.RemovalOutcome, error) {
	return m.removeFn(ctx, callerID, commentID)
}

func (m *mockUsecase) ReplyByEmail(ctx context.Context, sender, subject, body string) (domain.PostResult, error) {
	return m.emailFn(ctx, sender, subject, body)
}

func (m *mockUsecase) ListPage(ctx context.Context, page string) ([]domain.CommentView, error) {
	return m.pageFn(ctx, page)
}

func (m *mockUsecase) ListUser(ctx context.Context, userID int64) ([]domain.CommentView, error) {
	return m.userFn(ctx, userID)
}

func (m *mockUsecase) ListRecent(ctx context.Context, count int) ([]domain.CommentView, error) {
	return m.recentFn(ctx, count)
}

func newRouter(svc domain.CommentUsecase) *gin.Engine {
	r := gin.New()
	r.Use(middleware.CORS("*"))
	NewCommentHandler(svc).Register(r, middleware.TrustedUser("X-Auth-User"))
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreate(t *testing.T) {
	var (
		gotCaller int64
		gotPage   string
		gotBody   string
		gotParent *int64
	)
	r := newRouter(&mockUsecase{
		postFn: func(_ context.Context, callerID int64, page, body string, parentID *int64) (domain.PostResult, error) {
			gotCaller, gotPage, gotBody, gotParent = callerID, page, body, parentID
			return domain.PostResult{ID: 12, NotifiedProfileHandle: "joost"}, nil
		},
	})

	form := url.Values{"page": {"/users/joost/"}, "comment": {"<i>hey</i> there"}, "parent": {"3"}}
	req := httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Auth-User", "7")
	w := do(r, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"result":"ok","message":"comment/created","id":12,"handle":"joost"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, int64(7), gotCaller)
	assert.Equal(t, "/users/joost/", gotPage)
	assert.Equal(t, "hey there", gotBody)
	require.NotNil(t, gotParent)
	assert.Equal(t, int64(3), *gotParent)
}

func TestCreate_JSONWithoutParent(t *testing.T) {
	r := newRouter(&mockUsecase{
		postFn: func(_ context.Context, _ int64, _, _ string, parentID *int64) (domain.PostResult, error) {
			assert.Nil(t, parentID)
			return domain.PostResult{ID: 1}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader(`{"page":"/blog/1","comment":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-User", "7")
	w := do(r, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"result":"ok","message":"comment/created","id":1}`, w.Body.String())
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		auth   string
		body   string
		err    error
		code   int
		reason string
	}{
		{name: "anonymous", body: `{"page":"/a","comment":"x"}`, code: http.StatusUnauthorized, reason: "not_logged_in"},
		{name: "missing comment", auth: "1", body: `{"page":"/a"}`, code: http.StatusBadRequest, reason: ReasonInvalidInput},
		{name: "markup only", auth: "1", body: `{"page":"/a","comment":"<b></b>"}`, code: http.StatusBadRequest, reason: ReasonInvalidInput},
		{name: "comment too long", auth: "1", body: `{"page":"/a","comment":"` + strings.Repeat("x", 16001) + `"}`, code: http.StatusBadRequest, reason: ReasonInvalidInput},
		{name: "parent gone", auth: "1", body: `{"page":"/a","comment":"x","parent":9}`, err: domain.ErrParentNotFound, code: http.StatusUnprocessableEntity, reason: ReasonParentNotFound},
		{name: "db down", auth: "1", body: `{"page":"/a","comment":"x"}`, err: errors.New("dial tcp: refused"), code: http.StatusInternalServerError, reason: ReasonServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&mockUsecase{
				postFn: func(context.Context, int64, string, string, *int64) (domain.PostResult, error) {
					return domain.PostResult{}, tt.err
				},
			})
			req := httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.auth != "" {
				req.Header.Set("X-Auth-User", tt.auth)
			}
			w := do(r, req)

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), `"reason":"`+tt.reason+`"`)
			assert.NotContains(t, w.Body.String(), "dial tcp", "internal errors are not leaked")
		})
	}
}

func TestRemove(t *testing.T) {
	r := newRouter(&mockUsecase{
		removeFn: func(_ context.Context, callerID, commentID int64) (domain.RemovalOutcome, error) {
			if callerID != 1 {
				return "", domain.ErrForbidden
			}
			assert.Equal(t, int64(5), commentID)
			return domain.RemovalSoftened, nil
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/comments/5", nil)
	req.Header.Set("X-Auth-User", "1")
	w := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"ok","reason":"comment_removed"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/comments/5", nil)
	req.Header.Set("X-Auth-User", "2")
	w = do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"result":"error","reason":"not_your_comment"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/comments/abc", nil)
	req.Header.Set("X-Auth-User", "1")
	w = do(r, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFetchByPage(t *testing.T) {
	var gotPage string
	r := newRouter(&mockUsecase{
		pageFn: func(_ context.Context, page string) ([]domain.CommentView, error) {
			gotPage = page
			return []domain.CommentView{
				{Comment: domain.Comment{ID: 2, Comment: "<b>", Page: "/blog/1", Time: time.Unix(0, 0)}, Badges: []byte(`{"commented":true}`)},
				{Comment: domain.Comment{ID: 1, Comment: "b", Page: "/blog/1", Time: time.Unix(0, 0)}},
			}, nil
		},
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/comments/page/blog/1/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/blog/1/", gotPage)
	body := w.Body.String()
	assert.True(t, strings.Index(body, `"2":`) < strings.Index(body, `"1":`), "query order is kept")
	assert.Contains(t, body, `"comment":"<b>"`, "html is not escaped")
	assert.Contains(t, body, `"page":"/blog/1"`, "slashes are not escaped")
	assert.Contains(t, body, `"badges":{"commented":true}`)
	assert.Contains(t, body, `"time":"1970-01-01 00:00:00"`)
}

func TestFetchRecent(t *testing.T) {
	var counts []int
	r := newRouter(&mockUsecase{
		recentFn: func(_ context.Context, count int) ([]domain.CommentView, error) {
			counts = append(counts, count)
			return nil, nil
		},
	})

	for _, raw := range []string{"3", "abc", "500", "-2"} {
		w := do(r, httptest.NewRequest(http.MethodGet, "/comments/recent/"+raw, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"result":"ok","count":0,"comments":{}}`, w.Body.String())
	}
	assert.Equal(t, []int{3, 5, 100, 5}, counts)
}

func TestFetchByUser(t *testing.T) {
	r := newRouter(&mockUsecase{
		userFn: func(_ context.Context, userID int64) ([]domain.CommentView, error) {
			if userID == 4 {
				return []domain.CommentView{{Comment: domain.Comment{ID: 8, UserID: 4}}}, nil
			}
			return nil, errors.New("boom")
		},
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/comments/user/4", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = do(r, httptest.NewRequest(http.MethodGet, "/comments/user/5", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/comments/user/x", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEmailReply(t *testing.T) {
	r := newRouter(&mockUsecase{
		emailFn: func(_ context.Context, sender, subject, body string) (domain.PostResult, error) {
			assert.Equal(t, "bob@example.com", sender)
			assert.Equal(t, "Re: [comment#4] hi", subject)
			assert.Equal(t, "thanks", body)
			return domain.PostResult{ID: 5}, nil
		},
	})

	form := url.Values{"sender": {" bob@example.com "}, "subject": {"Re: [comment#4] hi"}, "stripped-text": {"thanks"}}
	req := httptest.NewRequest(http.MethodPost, "/comments/email-reply", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := do(r, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"result":"ok","message":"comment/created","id":5}`, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/comments/email-reply", strings.NewReader("sender=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = do(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, getStatusCode(nil))
	assert.Equal(t, http.StatusBadRequest, getStatusCode(domain.ErrBadParamInput))
	assert.Equal(t, http.StatusUnprocessableEntity, getStatusCode(domain.ErrParentNotFound))
	assert.Equal(t, http.StatusNotFound, getStatusCode(domain.ErrNotFound))
	assert.Equal(t, http.StatusForbidden, getStatusCode(domain.ErrForbidden))
	assert.Equal(t, http.StatusInternalServerError, getStatusCode(domain.ErrInternalServerError))
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/ok", Health(pinger{}))
	r.GET("/down", Health(pinger{err: errors.New("gone")}))

	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/ok", nil)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, httptest.NewRequest(http.MethodGet, "/down", nil)).Code)
}
