package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/go-comment-engine/domain"
	"github.com/Guyuepp/go-comment-engine/internal/rest/middleware"
	"github.com/Guyuepp/go-comment-engine/internal/rest/request"
	"github.com/Guyuepp/go-comment-engine/internal/rest/response"
	"github.com/Guyuepp/go-comment-engine/internal/usecase/query"
)

const (
	ReasonInvalidInput   = "invalid_input"
	ReasonParentNotFound = "parent_not_found"
	ReasonNotFound       = "not_found"
	ReasonNotYourComment = "not_your_comment"
	ReasonRemoved        = "comment_removed"
	ReasonServerError    = "server_error"
)

// CommentHandler represent the httphandler for comments
type CommentHandler struct {
	Service domain.CommentUsecase
}

func NewCommentHandler(svc domain.CommentUsecase) *CommentHandler {
	return &CommentHandler{
		Service: svc,
	}
}

// Register mounts the comment routes. auth guards the routes that need a caller.
func (h *CommentHandler) Register(r gin.IRouter, auth gin.HandlerFunc) {
	g := r.Group("/comments")
	g.GET("/page/*page", h.FetchByPage)
	g.GET("/recent/:count", h.FetchRecent)
	g.GET("/user/:id", h.FetchByUser)
	g.POST("/email-reply", h.EmailReply)

	g.POST("", auth, h.Create)
	g.DELETE("/:id", auth, h.Remove)
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req request.Comment
	if err := c.ShouldBind(&req); err != nil {
		c.PureJSON(http.StatusBadRequest, response.Status{Result: response.ResultError, Reason: ReasonInvalidInput, Message: err.Error()})
		return
	}
	if err := req.Scrub(); err != nil {
		c.PureJSON(http.StatusBadRequest, response.Status{Result: response.ResultError, Reason: ReasonInvalidInput, Message: err.Error()})
		return
	}

	res, err := h.Service.Post(c.Request.Context(), c.GetInt64(middleware.UserIDKey), req.Page, req.Comment, req.ParentID())
	if err != nil {
		fail(c, err)
		return
	}
	c.PureJSON(http.StatusCreated, response.NewCreated(res))
}

func (h *CommentHandler) Remove(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, domain.ErrNotFound)
		return
	}

	if _, err := h.Service.Remove(c.Request.Context(), c.GetInt64(middleware.UserIDKey), id); err != nil {
		fail(c, err)
		return
	}
	c.PureJSON(http.StatusOK, response.Status{Result: response.ResultOK, Reason: ReasonRemoved})
}

func (h *CommentHandler) FetchByPage(c *gin.Context) {
	views, err := h.Service.ListPage(c.Request.Context(), c.Param("page"))
	list(c, views, err)
}

func (h *CommentHandler) FetchRecent(c *gin.Context) {
	views, err := h.Service.ListRecent(c.Request.Context(), query.ClampRecentCount(c.Param("count")))
	list(c, views, err)
}

func (h *CommentHandler) FetchByUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, domain.ErrNotFound)
		return
	}
	views, err := h.Service.ListUser(c.Request.Context(), id)
	list(c, views, err)
}

// EmailReply takes replies forwarded by the inbound mail webhook
func (h *CommentHandler) EmailReply(c *gin.Context) {
	var req request.EmailReply
	if err := c.ShouldBind(&req); err != nil {
		c.PureJSON(http.StatusBadRequest, response.Status{Result: response.ResultError, Reason: ReasonInvalidInput, Message: err.Error()})
		return
	}
	if err := req.Scrub(); err != nil {
		c.PureJSON(http.StatusBadRequest, response.Status{Result: response.ResultError, Reason: ReasonInvalidInput, Message: err.Error()})
		return
	}

	res, err := h.Service.ReplyByEmail(c.Request.Context(), req.Sender, req.Subject, req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	c.PureJSON(http.StatusCreated, response.NewCreated(res))
}

func list(c *gin.Context, views []domain.CommentView, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.PureJSON(http.StatusOK, response.NewCommentList(views))
}

func fail(c *gin.Context, err error) {
	status := getStatusCode(err)
	body := response.Status{Result: response.ResultError, Reason: getReason(err)}
	if status != http.StatusInternalServerError && status != http.StatusForbidden {
		body.Message = err.Error()
	}
	c.PureJSON(status, body)
}

// getStatusCode will get the code of the error from domain.CommentUsecase
func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, domain.ErrParentNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBadParamInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		logrus.Error(err)
		return http.StatusInternalServerError
	}
}

func getReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrParentNotFound):
		return ReasonParentNotFound
	case errors.Is(err, domain.ErrBadParamInput):
		return ReasonInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, domain.ErrForbidden):
		return ReasonNotYourComment
	default:
		return ReasonServerError
	}
}
