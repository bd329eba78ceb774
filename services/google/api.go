package googlesvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/forms/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/roster"
)

const (
	driveFileScope = "https://www.googleapis.com/auth/drive.file"

	// registration sheet layout: one header row, then one row per submission
	registrationRange = "A2:D"
)

var registrationHeader = []interface{}{"الوقت", "الاسم", "رقم الجوال", "الجنس"}

// apiClient talks to the Google Forms, Sheets and OAuth2 APIs on behalf of an organization.
type apiClient struct {
	oauth *oauth2.Config
}

var _ integration.GoogleClient = (*apiClient)(nil)

func NewAPIClient(conf *core.Config) *apiClient {
	return &apiClient{
		oauth: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				forms.FormsBodyScope,
				driveFileScope,
				sheets.SpreadsheetsScope,
				oauth2api.UserinfoEmailScope,
			},
		},
	}
}

// AuthCodeURL is where the dashboard sends the admin to grant access.
func (c *apiClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (c *apiClient) tokenSource(ctx context.Context, creds integration.Credentials) option.ClientOption {
	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
		Expiry:       creds.Expiry,
	}
	return option.WithTokenSource(c.oauth.TokenSource(ctx, tok))
}

func (c *apiClient) Authorize(ctx context.Context, authCode string) (integration.Connection, error) {
	if strings.TrimSpace(authCode) == "" {
		return integration.Connection{}, core.NewValidationError(nil, core.FieldError{Field: "auth_code", Error: "auth_code is required"})
	}
	tok, err := c.oauth.Exchange(ctx, authCode)
	if err != nil {
		return integration.Connection{}, errors.Wrap(err, "exchanging auth code")
	}
	creds := integration.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}

	svc, err := oauth2api.NewService(ctx, c.tokenSource(ctx, creds))
	if err != nil {
		return integration.Connection{}, errors.Wrap(err, "creating oauth2 service")
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return integration.Connection{}, errors.Wrap(err, "getting user info")
	}

	scopes := append([]string(nil), c.oauth.Scopes...)
	if granted, ok := tok.Extra("scope").(string); ok && granted != "" {
		scopes = strings.Fields(granted)
	}
	return integration.Connection{Email: info.Email, Scopes: scopes, Credentials: creds}, nil
}

// CreateRegistrationAssets creates the registration form and a response sheet with the registration header.
func (c *apiClient) CreateRegistrationAssets(ctx context.Context, creds integration.Credentials, course roster.Course) (integration.RegistrationAssets, error) {
	ts := c.tokenSource(ctx, creds)
	formsSvc, err := forms.NewService(ctx, ts)
	if err != nil {
		return integration.RegistrationAssets{}, errors.Wrap(err, "creating forms service")
	}
	sheetsSvc, err := sheets.NewService(ctx, ts)
	if err != nil {
		return integration.RegistrationAssets{}, errors.Wrap(err, "creating sheets service")
	}

	title := "التسجيل في " + course.Name
	form, err := formsSvc.Forms.Create(&forms.Form{
		Info: &forms.Info{Title: title, DocumentTitle: title},
	}).Context(ctx).Do()
	if err != nil {
		return integration.RegistrationAssets{}, errors.Wrap(err, "creating form")
	}
	_, err = formsSvc.Forms.BatchUpdate(form.FormId, &forms.BatchUpdateFormRequest{
		Requests: []*forms.Request{
			textQuestion(0, "الاسم"),
			textQuestion(1, "رقم الجوال"),
			choiceQuestion(2, "الجنس", "ذكر", "أنثى"),
		},
	}).Context(ctx).Do()
	if err != nil {
		return integration.RegistrationAssets{}, errors.Wrap(err, "adding form questions")
	}

	sheet, err := sheetsSvc.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return integration.RegistrationAssets{}, errors.Wrap(err, "creating sheet")
	}
	_, err = sheetsSvc.Spreadsheets.Values.Update(sheet.SpreadsheetId, "A1:D1", &sheets.ValueRange{
		Values: [][]interface{}{registrationHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return integration.RegistrationAssets{}, errors.Wrap(err, "writing sheet header")
	}

	return integration.RegistrationAssets{
		FormID:   form.FormId,
		FormURL:  form.ResponderUri,
		SheetID:  sheet.SpreadsheetId,
		SheetURL: sheet.SpreadsheetUrl,
	}, nil
}

func textQuestion(index int64, title string) *forms.Request {
	return &forms.Request{CreateItem: &forms.CreateItemRequest{
		Item: &forms.Item{
			Title: title,
			QuestionItem: &forms.QuestionItem{Question: &forms.Question{
				Required:     true,
				TextQuestion: &forms.TextQuestion{},
			}},
		},
		Location: &forms.Location{Index: index, ForceSendFields: []string{"Index"}},
	}}
}

func choiceQuestion(index int64, title string, choices ...string) *forms.Request {
	options := make([]*forms.Option, len(choices))
	for i, ch := range choices {
		options[i] = &forms.Option{Value: ch}
	}
	return &forms.Request{CreateItem: &forms.CreateItemRequest{
		Item: &forms.Item{
			Title: title,
			QuestionItem: &forms.QuestionItem{Question: &forms.Question{
				Required:       true,
				ChoiceQuestion: &forms.ChoiceQuestion{Type: "RADIO", Options: options},
			}},
		},
		Location: &forms.Location{Index: index},
	}}
}

// ReadRegistrations reads every submission row of the sheet. Rows without a name are skipped.
func (c *apiClient) ReadRegistrations(ctx context.Context, creds integration.Credentials, sheetID string) ([]roster.ImportRow, error) {
	sheetsSvc, err := sheets.NewService(ctx, c.tokenSource(ctx, creds))
	if err != nil {
		return nil, errors.Wrap(err, "creating sheets service")
	}
	resp, err := sheetsSvc.Spreadsheets.Values.Get(sheetID, registrationRange).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "reading sheet")
	}
	return parseRegistrations(resp.Values), nil
}

func parseRegistrations(values [][]interface{}) []roster.ImportRow {
	rows := make([]roster.ImportRow, 0, len(values))
	for _, v := range values {
		cell := func(i int) string {
			if i < len(v) {
				return strings.TrimSpace(fmt.Sprint(v[i]))
			}
			return ""
		}
		name := cell(1)
		if name == "" {
			continue
		}
		rows = append(rows, roster.ImportRow{Name: name, Phone: cell(2), Gender: parseGender(cell(3))})
	}
	return rows
}

func parseGender(s string) roster.Gender {
	switch strings.ToUpper(s) {
	case "أنثى", "انثى", string(roster.Female):
		return roster.Female
	}
	return roster.Male
}
