package comment

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Guyuepp/go-comment-engine/domain"
	"github.com/Guyuepp/go-comment-engine/internal/avatar"
	"github.com/Guyuepp/go-comment-engine/internal/repository/mysql"
	"github.com/Guyuepp/go-comment-engine/internal/repository/mysql/model"
	"github.com/Guyuepp/go-comment-engine/internal/usecase/notify"
	"github.com/Guyuepp/go-comment-engine/internal/usecase/query"
)

type countingMailer struct {
	mu      sync.Mutex
	replies map[int64]int
	profile map[int64]int
}

func (m *countingMailer) NotifyReply(_ context.Context, _ domain.User, _ domain.Comment, parentAuthor domain.User, _ domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[parentAuthor.ID]++
	return nil
}

func (m *countingMailer) NotifyProfileComment(_ context.Context, _ domain.User, _ domain.Comment, owner domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile[owner.ID]++
	return nil
}

type stack struct {
	svc    *service
	store  domain.CommentRepository
	users  domain.UserRepository
	mailer *countingMailer
	db     *gorm.DB
}

func newStack(t *testing.T) stack {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, mysql.Migrate(db))

	store := mysql.NewCommentRepository(db)
	users := mysql.NewUserRepository(db)
	mailer := &countingMailer{replies: map[int64]int{}, profile: map[int64]int{}}
	svc := NewService(
		store,
		query.NewService(store, avatar.NewResolver()),
		users,
		notify.NewService(users, mailer, nil),
		nil,
	)
	return stack{svc: svc, store: store, users: users, mailer: mailer, db: db}
}

func (s stack) user(t *testing.T, handle string) domain.User {
	t.Helper()
	u := model.User{Handle: handle, Username: handle, Email: handle + "@example.com"}
	require.NoError(t, s.db.Create(&u).Error)
	return u.ToDomain()
}

func TestScenario_ReplyAndRemove(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	u1, u2 := s.user(t, "u1"), s.user(t, "u2")

	a, err := s.svc.Post(ctx, u1.ID, "/blog/1", "A", nil)
	require.NoError(t, err)
	rowA, err := s.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, rowA.Status)
	assert.Nil(t, rowA.ParentID)

	b, err := s.svc.Post(ctx, u2.ID, "/blog/1/", "B", &a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.mailer.replies[u1.ID], "one reply notification for u1")

	// only the owner may remove
	_, err = s.svc.Remove(ctx, u2.ID, a.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
	untouched, err := s.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, untouched.Status)

	outcome, err := s.svc.Remove(ctx, u1.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RemovalSoftened, outcome)

	outcome, err = s.svc.Remove(ctx, u2.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RemovalDeleted, outcome)
	_, err = s.store.GetByID(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	views, err := s.svc.ListPage(ctx, "/blog/1/")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusRemoved, views[0].Status)

	// badges were awarded and persisted
	saved, err := s.users.GetByID(ctx, u2.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"replied":true}`, string(saved.Data.Badges()))
}

func TestScenario_SelfNotificationsSuppressed(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	u1, u2 := s.user(t, "u1"), s.user(t, "u2")

	own, err := s.svc.Post(ctx, u1.ID, "/users/u1", "my wall", nil)
	require.NoError(t, err)
	assert.Empty(t, own.NotifiedProfileHandle)

	_, err = s.svc.Post(ctx, u1.ID, "/users/u1", "replying to myself", &own.ID)
	require.NoError(t, err)
	assert.Empty(t, s.mailer.replies)
	assert.Empty(t, s.mailer.profile)

	// a reply on someone else's profile notifies both people
	res, err := s.svc.Post(ctx, u2.ID, "/users/u1", "hi", &own.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", res.NotifiedProfileHandle)
	assert.Equal(t, 1, s.mailer.replies[u1.ID])
	assert.Equal(t, 1, s.mailer.profile[u1.ID])
}

func TestScenario_EmailReply(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	u1, u2 := s.user(t, "u1"), s.user(t, "u2")

	a, err := s.svc.Post(ctx, u1.ID, "/blog/3", "question?", nil)
	require.NoError(t, err)

	res, err := s.svc.ReplyByEmail(ctx, u2.Email, "Re: [comment#"+itoa(a.ID)+"] u1 replied", "answer")
	require.NoError(t, err)

	reply, err := s.store.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "/blog/3", reply.Page)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, a.ID, *reply.ParentID)
	assert.Equal(t, 1, s.mailer.replies[u1.ID])
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
