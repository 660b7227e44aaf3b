package policy

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Hung6066/IVF-sub008/models"
)

func newMockedStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return NewGormStore(db), mock
}

func TestGormStoreMatchCapabilityPropagatesErrors(t *testing.T) {
	store, mock := newMockedStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(fmt.Errorf("connection reset"))

	// The pipeline treats this error as deny; the store must surface it
	// rather than swallowing it into an empty match.
	matched, err := store.MatchCapability(context.Background(), "/patients/1", "read")
	assert.Error(t, err)
	assert.Nil(t, matched)
}

func TestGormStoreGetActionPolicyDefaultDeny(t *testing.T) {
	store, mock := newMockedStore(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"action"}))

	p, err := store.GetActionPolicy(context.Background(), models.ActionExportPatientData)
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	assert.Equal(t, models.AuthLevelBiometric, p.RequiredLevel())
	assert.Equal(t, models.RiskLevelLow, p.MaxRisk())
}

func TestGormStoreGetActionPolicyInactiveRowDefaultDeny(t *testing.T) {
	store, mock := newMockedStore(t)
	rows := sqlmock.NewRows([]string{"action", "required_auth_level", "max_allowed_risk", "is_active"}).
		AddRow(string(models.ActionViewPatientRecord), "PASSWORD", "MEDIUM", false)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	p, err := store.GetActionPolicy(context.Background(), models.ActionViewPatientRecord)
	require.NoError(t, err)
	assert.Equal(t, models.AuthLevelBiometric, p.RequiredLevel(), "an inactive row must not relax the default deny")
}

func TestGormStoreFieldPoliciesPropagatesErrors(t *testing.T) {
	store, mock := newMockedStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(fmt.Errorf("connection reset"))

	policies, err := store.FieldPolicies(context.Background(), "patients", "nurse")
	assert.Error(t, err)
	assert.Nil(t, policies)
}
