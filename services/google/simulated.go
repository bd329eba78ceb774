package googlesvc

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/roster"
)

const (
	simulatedEmail    = "admin@alnoor-center.com"
	simulatedRowCount = 3
)

var simulatedScopes = []string{"forms.body", "drive.file", "spreadsheets"}

// simulatedClient answers like Google would for the demo data, after a configurable latency.
type simulatedClient struct {
	latency time.Duration
}

var _ integration.GoogleClient = (*simulatedClient)(nil)

func NewSimulatedClient(conf *core.Config) *simulatedClient {
	return &simulatedClient{latency: conf.Google.SimulatedLatency}
}

func (c *simulatedClient) wait(ctx context.Context) error {
	if c.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *simulatedClient) Authorize(ctx context.Context, _ string) (integration.Connection, error) {
	if err := c.wait(ctx); err != nil {
		return integration.Connection{}, err
	}
	return integration.Connection{
		Email:  simulatedEmail,
		Scopes: append([]string(nil), simulatedScopes...),
		Credentials: integration.Credentials{
			AccessToken:  "mock_access_token",
			RefreshToken: "mock_refresh_token",
			TokenType:    "Bearer",
			Expiry:       time.Now().UTC().Add(time.Hour),
		},
	}, nil
}

func (c *simulatedClient) CreateRegistrationAssets(ctx context.Context, _ integration.Credentials, course roster.Course) (integration.RegistrationAssets, error) {
	if err := c.wait(ctx); err != nil {
		return integration.RegistrationAssets{}, err
	}
	sheetID := "mockSheetID" + course.ID
	return integration.RegistrationAssets{
		FormID:   fmt.Sprintf("form_%s_%d", course.ID, time.Now().UnixNano()),
		FormURL:  fmt.Sprintf("https://docs.google.com/forms/d/e/1FAIpQLSeMockFormID%s/viewform", course.ID),
		SheetID:  sheetID,
		SheetURL: fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", sheetID),
	}, nil
}

func (c *simulatedClient) ReadRegistrations(ctx context.Context, _ integration.Credentials, _ string) ([]roster.ImportRow, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	rows := make([]roster.ImportRow, simulatedRowCount)
	for i := range rows {
		rows[i] = roster.ImportRow{
			Name:   fmt.Sprintf("طالب جديد %d", i+1),
			Phone:  fmt.Sprintf("05999999%d", i),
			Gender: roster.Male,
		}
	}
	return rows, nil
}
