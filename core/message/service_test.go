package message_test

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/message"
	"github.com/trezcool/halaqat/core/roster"
	messagingsvc "github.com/trezcool/halaqat/services/messaging"
	inmemdb "github.com/trezcool/halaqat/storage/database/inmem"
)

const (
	channelH1 = "-100123456789"
	channelH2 = "-100987654321"
)

type loggerMock struct {
	mu     sync.Mutex
	errors []string
}

func (l *loggerMock) Debug(string, ...interface{}) {}
func (l *loggerMock) Info(string, ...interface{})  {}
func (l *loggerMock) Warn(string, ...interface{})  {}
func (l *loggerMock) Fatal(string, ...interface{}) {}
func (l *loggerMock) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type testDeps struct {
	svc       *message.Service
	messenger *messagingsvc.Mock
	logger    *loggerMock
}

func newService(t *testing.T) testDeps {
	t.Helper()
	db := inmemdb.Open()
	require.NoError(t, inmemdb.Seed(db, "s3cr3t-p@ss", "2023-10-05"))

	validate, translator := core.NewValidator()
	message.InitValidators(validate, translator)

	deps := testDeps{messenger: messagingsvc.NewMock(), logger: &loggerMock{}}
	deps.svc = message.NewServiceMock(
		inmemdb.NewMessageRepository(db),
		deps.messenger,
		inmemdb.NewRosterRepository(db),
		validate,
		deps.logger,
	)
	return deps
}

func TestService_Send(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()

	_, err := deps.svc.Send(ctx, message.NewMessage{OrgID: "org1", Type: "SPAM", Target: channelH1, Text: "hi"})
	assert.True(t, core.IsValidation(err))

	_, err = deps.svc.Send(ctx, message.NewMessage{OrgID: "org1", Type: message.TypeReminder, Target: " ", Text: "hi"})
	assert.True(t, core.IsValidation(err))

	l, err := deps.svc.Send(ctx, message.NewMessage{OrgID: "org1", Type: message.TypeReminder, Target: channelH1, Text: " تذكير "})
	require.NoError(t, err)
	assert.Equal(t, message.StatusSent, l.Status)
	assert.Equal(t, "تذكير", l.Text)

	deps.messenger.FailFor(channelH2, errors.New("chat not found"))
	l, err = deps.svc.Send(ctx, message.NewMessage{OrgID: "org1", Type: message.TypeReminder, Target: channelH2, Text: "تذكير"})
	require.True(t, core.IsGateway(err))
	assert.Equal(t, message.StatusFailed, l.Status)
	assert.Equal(t, "chat not found", l.Error)

	deps.messenger.FailFor(channelH2, context.DeadlineExceeded)
	_, err = deps.svc.Send(ctx, message.NewMessage{OrgID: "org1", Type: message.TypeReminder, Target: channelH2, Text: "تذكير"})
	var gwErr *core.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Timeout)

	// transports wrap the deadline in their own error types
	deps.messenger.FailFor(channelH2, &url.Error{Op: "Post", URL: "https://api.telegram.org/sendMessage", Err: context.DeadlineExceeded})
	_, err = deps.svc.Send(ctx, message.NewMessage{OrgID: "org1", Type: message.TypeReminder, Target: channelH2, Text: "تذكير"})
	gwErr = nil
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Timeout)

	logs, err := deps.svc.QueryLogs(ctx, message.Filter{OrgID: "org1", Status: message.StatusFailed})
	require.NoError(t, err)
	assert.Len(t, logs, 3)
	assert.Len(t, deps.messenger.Sent(), 1)
}

func TestService_SendAsync(t *testing.T) {
	deps := newService(t)
	deps.messenger.FailFor(channelH1, errors.New("bot was kicked"))

	deps.svc.SendAsync(message.NewMessage{OrgID: "org1", Type: message.TypeMotivation, Target: channelH1, Text: "بارك الله فيكم"})
	deps.svc.SendAsync(message.NewMessage{OrgID: "org1", Type: message.TypeMotivation, Target: channelH2, Text: "بارك الله فيكم"})

	require.Len(t, deps.logger.errors, 1)
	assert.Contains(t, deps.logger.errors[0], "MOTIVATION")

	logs, err := deps.svc.QueryLogs(context.Background(), message.Filter{OrgID: "org1", Type: message.TypeMotivation})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestService_Broadcast(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()

	t.Run("nothing to send", func(t *testing.T) {
		_, err := deps.svc.Broadcast(ctx, "org1", message.Broadcast{CourseID: "c1", CustomText: "  "})
		assert.Error(t, err)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := deps.svc.Broadcast(ctx, "org1", message.Broadcast{CourseID: "c1", Templates: []message.Template{"promo"}})
		assert.Error(t, err)
	})

	t.Run("foreign course", func(t *testing.T) {
		_, err := deps.svc.Broadcast(ctx, "org2", message.Broadcast{CourseID: "c1", CustomText: "hi"})
		assert.Equal(t, roster.ErrCourseNotFound, err)
	})

	t.Run("no channel", func(t *testing.T) {
		_, err := deps.svc.Broadcast(ctx, "org1", message.Broadcast{CourseID: "c2", CustomText: "hi"})
		assert.Equal(t, message.ErrNoChannels, err)
	})

	t.Run("templates and custom text", func(t *testing.T) {
		logs, err := deps.svc.Broadcast(ctx, "org1", message.Broadcast{
			CourseID:   "c1",
			Templates:  []message.Template{message.TemplateWelcome},
			CustomText: "جزاكم الله خيرا",
		})
		require.NoError(t, err)
		require.Len(t, logs, 4)
		for _, l := range logs {
			assert.Equal(t, message.TypeMotivation, l.Type)
		}
		assert.True(t, strings.Contains(logs[0].Text, "دورة سورة البقرة المكثفة"))
	})

	t.Run("partial failure", func(t *testing.T) {
		deps.messenger.FailFor(channelH2, errors.New("chat not found"))
		defer deps.messenger.FailFor(channelH2, nil)

		logs, err := deps.svc.Broadcast(ctx, "org1", message.Broadcast{CourseID: "c1", CustomText: "hi"})
		assert.True(t, core.IsGateway(err))
		require.Len(t, logs, 2)
	})
}

func TestService_SendDailyPlan(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()

	_, err := deps.svc.SendDailyPlan(ctx, "org1", "c1", "2024-01-01")
	assert.Equal(t, roster.ErrPlanNotFound, err)

	logs, err := deps.svc.SendDailyPlan(ctx, "org1", "c1", "2023-10-05")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, message.TypeDailyPlan, logs[0].Type)
	assert.Contains(t, logs[0].Text, "2023-10-05")

	// the seeded plan ten days into the range is an exam
	logs, err = deps.svc.SendDailyPlan(ctx, "org1", "c1", "2023-09-30")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(logs[0].Text, "اختبار"))
}

func TestTemplate_Render(t *testing.T) {
	c := roster.Course{Name: "جزء عم", DailyAmount: "وجه", StartDate: "2023-10-01", EndDate: "2023-12-30", MidtermDate: "2023-11-15", FinalExamDate: "2023-12-28"}
	h := roster.Halaqa{Name: "حلقة الصديق"}

	for _, tmpl := range message.AllTemplates {
		t.Run(string(tmpl), func(t *testing.T) {
			text, err := tmpl.Render(c, h)
			require.NoError(t, err)
			assert.NotEmpty(t, strings.TrimSpace(text))
			assert.NotEmpty(t, tmpl.Title())
		})
	}

	_, err := message.Template("promo").Render(c, h)
	assert.True(t, core.IsValidation(err))
	assert.Len(t, message.Templates(), len(message.AllTemplates))
}
