package message

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/roster"
)

var (
	// errors
	ErrNoChannels = &core.PreconditionError{Msg: "no halaqa of this course has a messaging channel configured"}

	sendTimeout = 15 * time.Second
)

type (
	Repository interface {
		AppendLog(ctx context.Context, l Log) (Log, error)
		QueryLogs(ctx context.Context, filter Filter) ([]Log, error)
	}

	// Roster is the read side of the roster needed to address course circles.
	Roster interface {
		GetCourse(ctx context.Context, id string) (roster.Course, error)
		QueryHalaqat(ctx context.Context, filter roster.HalaqaFilter) ([]roster.Halaqa, error)
		GetDailyPlan(ctx context.Context, courseID string, date core.Date) (roster.DailyPlan, error)
	}

	Service struct {
		repo      Repository
		messenger core.Messenger
		roster    Roster
		validate  *validator.Validate
		logger    core.Logger
		sync      bool // run SendAsync synchronously
	}
)

func NewService(repo Repository, messenger core.Messenger, rstr Roster, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{
		repo:      repo,
		messenger: messenger,
		roster:    rstr,
		validate:  validate,
		logger:    logger,
	}
}

// NewServiceMock returns a Service whose SendAsync runs synchronously.
func NewServiceMock(repo Repository, messenger core.Messenger, rstr Roster, validate *validator.Validate, logger core.Logger) *Service {
	svc := NewService(repo, messenger, rstr, validate, logger)
	svc.sync = true
	return svc
}

// Send dispatches the message and appends the outcome to the log.
// A delivery failure is logged as FAILED and returned as a *core.GatewayError along with the log.
func (svc *Service) Send(ctx context.Context, nm NewMessage) (Log, error) {
	if err := nm.validate(); err != nil {
		return Log{}, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	sendErr := svc.messenger.Send(sendCtx, nm.Target, nm.Text)

	l := Log{
		ID:     core.NewID(),
		OrgID:  nm.OrgID,
		Type:   nm.Type,
		Target: nm.Target,
		Text:   nm.Text,
		Status: StatusSent,
		SentAt: time.Now().UTC(),
	}
	if sendErr != nil {
		l.Status = StatusFailed
		l.Error = sendErr.Error()
	}

	l, err := svc.repo.AppendLog(ctx, l)
	if err != nil {
		return Log{}, errors.Wrap(err, "appending message log")
	}
	if sendErr != nil {
		gwErr := &core.GatewayError{Msg: "sending message", Err: sendErr}
		if errors.Is(sendErr, context.DeadlineExceeded) {
			gwErr.Timeout = true
		}
		return l, gwErr
	}
	return l, nil
}

// SendAsync dispatches the message in the background. Failures end up in the message log and the logger.
func (svc *Service) SendAsync(nm NewMessage) {
	send := func() {
		if _, err := svc.Send(context.Background(), nm); err != nil {
			svc.logger.Error(fmt.Sprintf("sending %s message: %v", nm.Type, err), err)
		}
	}
	if svc.sync {
		send()
		return
	}
	go send()
}

func (svc *Service) QueryLogs(ctx context.Context, filter Filter) ([]Log, error) {
	return svc.repo.QueryLogs(ctx, filter)
}

// channelHalaqat returns the circles of the course that have a channel.
func (svc *Service) channelHalaqat(ctx context.Context, orgID, courseID string) (roster.Course, []roster.Halaqa, error) {
	c, err := svc.roster.GetCourse(ctx, courseID)
	if err != nil {
		return roster.Course{}, nil, err
	}
	if c.OrgID != orgID {
		return roster.Course{}, nil, roster.ErrCourseNotFound
	}
	halaqat, err := svc.roster.QueryHalaqat(ctx, roster.HalaqaFilter{CourseID: c.ID})
	if err != nil {
		return roster.Course{}, nil, errors.Wrap(err, "querying halaqat")
	}
	withChannel := make([]roster.Halaqa, 0, len(halaqat))
	for _, h := range halaqat {
		if h.ChannelID != "" {
			withChannel = append(withChannel, h)
		}
	}
	if len(withChannel) == 0 {
		return roster.Course{}, nil, ErrNoChannels
	}
	return c, withChannel, nil
}

// Broadcast renders the selected templates (and the custom text) for every circle of the course
// and sends them as MOTIVATION messages.
func (svc *Service) Broadcast(ctx context.Context, orgID string, b Broadcast) ([]Log, error) {
	b.CustomText = core.CleanString(b.CustomText)
	if err := svc.validate.Struct(b); err != nil {
		return nil, err
	}
	c, halaqat, err := svc.channelHalaqat(ctx, orgID, b.CourseID)
	if err != nil {
		return nil, err
	}

	texts := make(map[string][]string, len(halaqat))
	for _, h := range halaqat {
		for _, t := range b.Templates {
			text, err := t.Render(c, h)
			if err != nil {
				return nil, err
			}
			texts[h.ID] = append(texts[h.ID], text)
		}
		if b.CustomText != "" {
			texts[h.ID] = append(texts[h.ID], b.CustomText)
		}
	}

	var logs []Log
	var lastErr error
	for _, h := range halaqat {
		for _, text := range texts[h.ID] {
			l, err := svc.Send(ctx, NewMessage{OrgID: orgID, Type: TypeMotivation, Target: h.ChannelID, Text: text})
			if err != nil {
				if !core.IsGateway(err) {
					return logs, err
				}
				lastErr = err
			}
			logs = append(logs, l)
		}
	}
	return logs, lastErr
}

// SendDailyPlan sends the plan of the date to every circle of the course as a DAILY_PLAN message.
func (svc *Service) SendDailyPlan(ctx context.Context, orgID, courseID string, date core.Date) ([]Log, error) {
	_, halaqat, err := svc.channelHalaqat(ctx, orgID, courseID)
	if err != nil {
		return nil, err
	}
	plan, err := svc.roster.GetDailyPlan(ctx, courseID, date)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("مقرر يوم %s: %s", plan.Date, plan.Text)
	if plan.IsExam {
		text = "اختبار - " + text
	}

	logs := make([]Log, 0, len(halaqat))
	var lastErr error
	for _, h := range halaqat {
		l, err := svc.Send(ctx, NewMessage{OrgID: orgID, Type: TypeDailyPlan, Target: h.ChannelID, Text: text})
		if err != nil {
			if !core.IsGateway(err) {
				return logs, err
			}
			lastErr = err
		}
		logs = append(logs, l)
	}
	return logs, lastErr
}
