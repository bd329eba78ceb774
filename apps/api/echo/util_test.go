package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/halaqat/apps/api/echo"
	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/certificate"
	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/message"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/report"
	"github.com/trezcool/halaqat/core/roster"
	"github.com/trezcool/halaqat/services/google"
	"github.com/trezcool/halaqat/services/logger"
	"github.com/trezcool/halaqat/services/messaging"
	"github.com/trezcool/halaqat/services/metrics"
	"github.com/trezcool/halaqat/storage/database/inmem"
)

const password = "s3cr3t-p@ss"

var (
	// the seeded records end on Thursday 2023-10-05; "today" is the following Saturday
	seedRef = core.MustDate("2023-10-05")
	today   = time.Date(2023, 10, 7, 10, 0, 0, 0, time.UTC)
)

type testApp struct {
	conf      *core.Config
	srv       echoapi.Server
	db        *inmemdb.DB
	messenger *messagingsvc.Mock
	metrics   *metricsvc.Metrics
	orgSvc    *org.Service
}

func setup(t *testing.T) *testApp {
	t.Helper()
	core.NowFunc = func() time.Time { return today }
	t.Cleanup(func() { core.NowFunc = time.Now })

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Google.SimulatedLatency = 0
	conf.Google.Timeout = 5 * time.Second

	db := inmemdb.Open()
	require.NoError(t, inmemdb.Seed(db, password, seedRef))

	validate, translator := core.NewValidator()
	org.InitValidators(validate, translator)
	roster.InitValidators(validate, translator)
	message.InitValidators(validate, translator)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	messenger := messagingsvc.NewMock()
	metrics := metricsvc.New(conf.Build)

	recordRepo := metrics.InstrumentRecords(inmemdb.NewRecitationRepository(db))
	orgSvc := org.NewService(inmemdb.NewOrgRepository(db), validate)
	rosterSvc := roster.NewService(inmemdb.NewRosterRepository(db), orgSvc, validate, conf)
	messageSvc := message.NewServiceMock(inmemdb.NewMessageRepository(db), metrics.InstrumentMessenger(messenger), rosterSvc, validate, logger)
	recitationSvc := recitation.NewService(recordRepo, rosterSvc, messageSvc)
	integrationSvc := integration.NewService(
		inmemdb.NewIntegrationRepository(db),
		metrics.InstrumentGoogle(googlesvc.NewSimulatedClient(conf)),
		rosterSvc, orgSvc, validate, conf,
	)
	reportSvc := report.NewService(rosterSvc, recordRepo, orgSvc)
	certificateSvc := certificate.NewService(rosterSvc, orgSvc, reportSvc, validate)

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Metrics:        metrics,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		OrgSvc:         orgSvc,
		RosterSvc:      rosterSvc,
		RecitationSvc:  recitationSvc,
		MessageSvc:     messageSvc,
		IntegrationSvc: integrationSvc,
		ReportSvc:      reportSvc,
		CertificateSvc: certificateSvc,
	})
	return &testApp{conf: conf, srv: srv, db: db, messenger: messenger, metrics: metrics, orgSvc: orgSvc}
}

// token returns a JWT for a seeded user.
func (app *testApp) token(t *testing.T, userID string) string {
	t.Helper()
	usr, err := app.orgSvc.GetUser(context.Background(), userID)
	require.NoError(t, err)
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, app.conf), app.conf)
	require.NoError(t, err)
	return token
}

func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.srv.ServeHTTP(rec, req)
	return rec
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); ok {
		return assert.ElementsMatch(t, j1, j2), nil
	}
	return false, nil
}

// checkCodeAndData compares the status code and, when wantData is set, the JSON body.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
