package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/insights"
)

var ts = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestAuditRepository_MarkCompletedUsesNumberedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	a := domain.New("a-1", "org-1", domain.TypeHospitality, "rooms.xlsx", "k", "", ts)
	require.NoError(t, a.Start(ts))
	require.NoError(t, a.Complete(84, 500, 2, ts))

	mock.ExpectExec(regexp.QuoteMeta("WHERE organization_id = $6 AND id = $7 AND status = 'processing'")).
		WithArgs(domain.StatusCompleted, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 2, "org-1", domain.AuditID("a-1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewAuditRepository(db).MarkCompleted(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsightRepository_LatestByAuditNone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE organization_id=$1 AND audit_id=$2")).
		WithArgs("org-1", "a-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "audit_id", "result_json", "created_at"}))

	in, err := NewInsightRepository(db).LatestByAudit(context.Background(), "org-1", "a-1")
	require.NoError(t, err)
	assert.Nil(t, in)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
		WithArgs(insights.InsightID("i-1"), "org-1", "a-1", "{}", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, NewInsightRepository(db).Save(context.Background(), &insights.Insight{
		ID: "i-1", OrganizationID: "org-1", AuditID: "a-1", CreatedAt: ts,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
