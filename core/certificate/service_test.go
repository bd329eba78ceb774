package certificate_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/certificate"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/report"
	"github.com/trezcool/halaqat/core/roster"
	inmemdb "github.com/trezcool/halaqat/storage/database/inmem"
)

func newService(t *testing.T) *certificate.Service {
	t.Helper()
	prev := core.NowFunc
	core.NowFunc = func() time.Time { return time.Date(2023, 10, 7, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { core.NowFunc = prev })

	db := inmemdb.Open()
	require.NoError(t, inmemdb.Seed(db, "s3cr3t-p@ss", "2023-10-05"))

	validate, _ := core.NewValidator()
	rosterRepo := inmemdb.NewRosterRepository(db)
	orgSvc := org.NewService(inmemdb.NewOrgRepository(db), validate)
	reportSvc := report.NewService(rosterRepo, inmemdb.NewRecitationRepository(db), orgSvc)
	return certificate.NewService(rosterRepo, orgSvc, reportSvc, validate)
}

func TestService_Issue(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		orgID       string
		req         certificate.Request
		wantKind    certificate.Kind
		wantAverage float64 // 0: no average
		wantErr     func(error) bool
	}{
		{
			name:    "invalid recipient kind",
			orgID:   "org1",
			req:     certificate.Request{RecipientKind: "parent", RecipientID: "s1"},
			wantErr: func(err error) bool { return err != nil },
		},
		{
			name:    "message too long",
			orgID:   "org1",
			req:     certificate.Request{RecipientKind: certificate.RecipientStudent, RecipientID: "s1", Message: strings.Repeat("م", 501)},
			wantErr: func(err error) bool { return err != nil },
		},
		{
			name:    "unknown student",
			orgID:   "org1",
			req:     certificate.Request{RecipientKind: certificate.RecipientStudent, RecipientID: "s9"},
			wantErr: core.IsNotFound,
		},
		{
			name:    "student of another org",
			orgID:   "org2",
			req:     certificate.Request{RecipientKind: certificate.RecipientStudent, RecipientID: "s1"},
			wantErr: core.IsNotFound,
		},
		{
			name:    "course mismatch",
			orgID:   "org1",
			req:     certificate.Request{RecipientKind: certificate.RecipientStudent, RecipientID: "s1", CourseID: "c2"},
			wantErr: core.IsValidation,
		},
		{
			name:    "staff of another org",
			orgID:   "org2",
			req:     certificate.Request{RecipientKind: certificate.RecipientStaff, RecipientID: "u4"},
			wantErr: core.IsNotFound,
		},
		{
			name:        "passing student",
			orgID:       "org1",
			req:         certificate.Request{RecipientKind: certificate.RecipientStudent, RecipientID: "s1"},
			wantKind:    certificate.KindCompletion,
			wantAverage: 9.4,
		},
		{
			name:        "absence excluded from average",
			orgID:       "org1",
			req:         certificate.Request{RecipientKind: certificate.RecipientStudent, RecipientID: "s2", CourseID: "c1"},
			wantKind:    certificate.KindCompletion,
			wantAverage: 8,
		},
		{
			name:     "student without records",
			orgID:    "org1",
			req:      certificate.Request{RecipientKind: certificate.RecipientStudent, RecipientID: "s5"},
			wantKind: certificate.KindParticipation,
		},
		{
			name:     "staff",
			orgID:    "org1",
			req:      certificate.Request{RecipientKind: certificate.RecipientStaff, RecipientID: "u4"},
			wantKind: certificate.KindAppreciation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := svc.Issue(ctx, tt.orgID, tt.req)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, cert.Kind)
			assert.Equal(t, tt.wantKind.Title(), cert.Title)
			assert.Equal(t, tt.wantKind.DefaultMessage(), cert.Message)
			assert.Equal(t, certificate.DefaultSignatureTitle, cert.SignatureTitle)
			if tt.wantAverage == 0 {
				assert.Nil(t, cert.AverageScore)
				return
			}
			require.NotNil(t, cert.AverageScore)
			assert.InDelta(t, tt.wantAverage, *cert.AverageScore, 1e-9)
		})
	}
}

func TestService_IssueCustomText(t *testing.T) {
	svc := newService(t)

	cert, err := svc.Issue(context.Background(), "org1", certificate.Request{
		RecipientKind:  certificate.RecipientStaff,
		RecipientID:    "u5",
		CourseID:       "c1",
		SignatureTitle: " رئيس مجلس الإدارة ",
		Message:        "شكرا على جهودكم",
	})
	require.NoError(t, err)
	assert.Equal(t, "رئيس مجلس الإدارة", cert.SignatureTitle)
	assert.Equal(t, "شكرا على جهودكم", cert.Message)
	assert.Equal(t, "c1", cert.CourseID)
	assert.NotEmpty(t, cert.CourseTitle)
	assert.Equal(t, "معلم آخر", cert.RecipientName)

	_, err = svc.Issue(context.Background(), "org1", certificate.Request{
		RecipientKind: certificate.RecipientStaff,
		RecipientID:   "u5",
		CourseID:      "c9",
	})
	assert.Equal(t, roster.ErrCourseNotFound, err)
}
