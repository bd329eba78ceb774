package metricsvc

import (
	"context"
	"net/mail"
	"time"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/roster"
)

type messenger struct {
	next core.Messenger
	m    *Metrics
}

// InstrumentMessenger counts deliveries by channel (email or chat) and outcome.
func (m *Metrics) InstrumentMessenger(next core.Messenger) core.Messenger {
	return &messenger{next: next, m: m}
}

func (i *messenger) Send(ctx context.Context, target, text string) error {
	err := i.next.Send(ctx, target, text)
	channel := "chat"
	if _, perr := mail.ParseAddress(target); perr == nil {
		channel = "email"
	}
	i.m.messagesTotal.WithLabelValues(channel, outcome(err)).Inc()
	return err
}

type googleClient struct {
	next integration.GoogleClient
	m    *Metrics
}

// InstrumentGoogle records the latency and outcome of every gateway call.
func (m *Metrics) InstrumentGoogle(next integration.GoogleClient) integration.GoogleClient {
	return &googleClient{next: next, m: m}
}

func (g *googleClient) observe(op string, start time.Time, err error) {
	g.m.gatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	g.m.gatewayCalls.WithLabelValues(op, outcome(err)).Inc()
}

func (g *googleClient) Authorize(ctx context.Context, authCode string) (conn integration.Connection, err error) {
	defer func(start time.Time) { g.observe("authorize", start, err) }(time.Now())
	return g.next.Authorize(ctx, authCode)
}

func (g *googleClient) CreateRegistrationAssets(ctx context.Context, creds integration.Credentials, course roster.Course) (ra integration.RegistrationAssets, err error) {
	defer func(start time.Time) { g.observe("create_registration_assets", start, err) }(time.Now())
	return g.next.CreateRegistrationAssets(ctx, creds, course)
}

func (g *googleClient) ReadRegistrations(ctx context.Context, creds integration.Credentials, sheetID string) (rows []roster.ImportRow, err error) {
	defer func(start time.Time) { g.observe("read_registrations", start, err) }(time.Now())
	return g.next.ReadRegistrations(ctx, creds, sheetID)
}

type recordRepository struct {
	recitation.Repository
	m *Metrics
}

// InstrumentRecords counts the records written through the repository.
func (m *Metrics) InstrumentRecords(next recitation.Repository) recitation.Repository {
	return &recordRepository{Repository: next, m: m}
}

func (r *recordRepository) UpsertRecord(ctx context.Context, rec recitation.Record) (recitation.Record, error) {
	saved, err := r.Repository.UpsertRecord(ctx, rec)
	if err == nil {
		r.m.recordsUpserted.Inc()
	}
	return saved, err
}
