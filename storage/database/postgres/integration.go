package pgdb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/halaqat/core/integration"
)

const (
	connectionColumns = "id, org_id, email, scopes, access_token, refresh_token, token_type, expiry, connected_at"
	assetColumns      = "id, course_id, org_id, form_id, form_url, sheet_id, sheet_url, midterm_exam_url, final_exam_url, created_at, updated_at"
)

type (
	connectionRow struct {
		ID           string         `db:"id"`
		OrgID        string         `db:"org_id"`
		Email        string         `db:"email"`
		Scopes       pq.StringArray `db:"scopes"`
		AccessToken  string         `db:"access_token"`
		RefreshToken null.String    `db:"refresh_token"`
		TokenType    null.String    `db:"token_type"`
		Expiry       null.Time      `db:"expiry"`
		ConnectedAt  time.Time      `db:"connected_at"`
	}

	assetRow struct {
		ID             string      `db:"id"`
		CourseID       string      `db:"course_id"`
		OrgID          string      `db:"org_id"`
		FormID         null.String `db:"form_id"`
		FormURL        string      `db:"form_url"`
		SheetID        null.String `db:"sheet_id"`
		SheetURL       string      `db:"sheet_url"`
		MidtermExamURL string      `db:"midterm_exam_url"`
		FinalExamURL   string      `db:"final_exam_url"`
		CreatedAt      time.Time   `db:"created_at"`
		UpdatedAt      time.Time   `db:"updated_at"`
	}
)

func (r connectionRow) connection() integration.Connection {
	return integration.Connection{
		ID:          r.ID,
		OrgID:       r.OrgID,
		Email:       r.Email,
		Scopes:      []string(r.Scopes),
		ConnectedAt: r.ConnectedAt,
		Credentials: integration.Credentials{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken.String,
			TokenType:    r.TokenType.String,
			Expiry:       r.Expiry.Time,
		},
	}
}

func (r assetRow) asset() integration.Asset {
	return integration.Asset{
		ID:             r.ID,
		CourseID:       r.CourseID,
		OrgID:          r.OrgID,
		FormID:         r.FormID.String,
		FormURL:        r.FormURL,
		SheetID:        r.SheetID.String,
		SheetURL:       r.SheetURL,
		MidtermExamURL: r.MidtermExamURL,
		FinalExamURL:   r.FinalExamURL,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type integrationRepository struct {
	db *sqlx.DB
}

var _ integration.Repository = (*integrationRepository)(nil)

func NewIntegrationRepository(db *sqlx.DB) integration.Repository {
	return &integrationRepository{db: db}
}

func (repo *integrationRepository) GetConnection(ctx context.Context, orgID string) (integration.Connection, error) {
	var row connectionRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+connectionColumns+" FROM google_connections WHERE org_id = $1", orgID); err != nil {
		if isNoRows(err) {
			return integration.Connection{}, integration.ErrConnectionNotFound
		}
		return integration.Connection{}, errors.Wrap(err, "selecting google connection")
	}
	return row.connection(), nil
}

func (repo *integrationRepository) SaveConnection(ctx context.Context, conn integration.Connection) (integration.Connection, error) {
	creds := conn.Credentials
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO google_connections ("+connectionColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		conn.ID, conn.OrgID, conn.Email, pq.StringArray(conn.Scopes), creds.AccessToken, nullString(creds.RefreshToken),
		nullString(creds.TokenType), null.NewTime(creds.Expiry, !creds.Expiry.IsZero()), conn.ConnectedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return integration.Connection{}, integration.ErrAlreadyConnected
		}
		return integration.Connection{}, errors.Wrap(err, "inserting google connection")
	}
	return conn, nil
}

func (repo *integrationRepository) DeleteConnection(ctx context.Context, orgID string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM google_connections WHERE org_id = $1", orgID)
	if err != nil {
		return errors.Wrap(err, "deleting google connection")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return integration.ErrConnectionNotFound
	}
	return nil
}

func (repo *integrationRepository) GetAsset(ctx context.Context, courseID string) (integration.Asset, error) {
	var row assetRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+assetColumns+" FROM google_assets WHERE course_id = $1", courseID); err != nil {
		if isNoRows(err) {
			return integration.Asset{}, integration.ErrAssetNotFound
		}
		return integration.Asset{}, errors.Wrap(err, "selecting google asset")
	}
	return row.asset(), nil
}

func (repo *integrationRepository) UpsertAsset(ctx context.Context, a integration.Asset) (integration.Asset, error) {
	var row assetRow
	err := repo.db.GetContext(ctx, &row,
		`INSERT INTO google_assets (`+assetColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (course_id) DO UPDATE SET form_id = EXCLUDED.form_id, form_url = EXCLUDED.form_url,
		sheet_id = EXCLUDED.sheet_id, sheet_url = EXCLUDED.sheet_url, midterm_exam_url = EXCLUDED.midterm_exam_url,
		final_exam_url = EXCLUDED.final_exam_url, updated_at = EXCLUDED.updated_at
		RETURNING `+assetColumns,
		a.ID, a.CourseID, a.OrgID, nullString(a.FormID), a.FormURL, nullString(a.SheetID), a.SheetURL,
		a.MidtermExamURL, a.FinalExamURL, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return integration.Asset{}, errors.Wrap(err, "upserting google asset")
	}
	return row.asset(), nil
}
