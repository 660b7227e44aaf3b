package policy

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hung6066/IVF-sub008/models"
)

func TestMemoryStoreActionPolicies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("unconfigured action gets default deny", func(t *testing.T) {
		p, err := store.GetActionPolicy(ctx, models.ActionExportPatientData)
		require.NoError(t, err)
		assert.False(t, p.IsActive)
		assert.Equal(t, models.AuthLevelBiometric, p.RequiredLevel())
		assert.Equal(t, models.RiskLevelLow, p.MaxRisk())
	})

	t.Run("upsert then read back", func(t *testing.T) {
		err := store.UpsertActionPolicy(ctx, &models.ZeroTrustActionPolicy{
			Action:            models.ActionViewPatientRecord,
			RequiredAuthLevel: models.AuthLevelPassword.String(),
			MaxAllowedRisk:    models.RiskLevelMedium.String(),
			IsActive:          true,
		})
		require.NoError(t, err)

		p, err := store.GetActionPolicy(ctx, models.ActionViewPatientRecord)
		require.NoError(t, err)
		assert.True(t, p.IsActive)
		assert.Equal(t, models.AuthLevelPassword, p.RequiredLevel())
	})

	t.Run("deactivated policy falls back to default deny", func(t *testing.T) {
		err := store.DeactivateActionPolicy(ctx, models.ActionViewPatientRecord, "auditor")
		require.NoError(t, err)

		p, err := store.GetActionPolicy(ctx, models.ActionViewPatientRecord)
		require.NoError(t, err)
		assert.Equal(t, models.AuthLevelBiometric, p.RequiredLevel())

		// The row itself survives deactivation.
		all, err := store.ListActionPolicies(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.False(t, all[0].IsActive)
		assert.Equal(t, "auditor", all[0].UpdatedBy)
	})

	t.Run("deactivating a missing policy errors", func(t *testing.T) {
		err := store.DeactivateActionPolicy(ctx, models.ActionBiometricIdentify, "auditor")
		assert.Error(t, err)
	})
}

func TestMemoryStoreCapabilityPolicies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.UpsertCapabilityPolicy(ctx, &models.CapabilityPolicy{
		ID: "cp1", ResourcePathPattern: "/patients/**", Capability: "read", SubjectRoles: "doctor",
	}))

	matched, err := store.MatchCapability(ctx, "/patients/42", "read")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, "cp1", matched.ID)

	// Upsert with the same ID replaces, not appends.
	require.NoError(t, store.UpsertCapabilityPolicy(ctx, &models.CapabilityPolicy{
		ID: "cp1", ResourcePathPattern: "/patients/**", Capability: "read", SubjectRoles: "doctor,nurse",
	}))
	all, err := store.ListCapabilityPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].AllowsRole("nurse"))
}

func TestMemoryStoreFieldPolicies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.UpsertFieldPolicy(ctx, &models.FieldAccessPolicy{
		TableName_: "patients", FieldName: "national_id", Role: "nurse",
		AccessLevel: models.AccessLevelMasked, MaskPattern: "****",
	}))

	policies, err := store.FieldPolicies(ctx, "patients", "nurse")
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, models.AccessLevelMasked, policies["national_id"].AccessLevel)

	// Other roles are unaffected.
	other, err := store.FieldPolicies(ctx, "patients", "doctor")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryStoreConcurrentReadsDuringWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = store.UpsertActionPolicy(ctx, &models.ZeroTrustActionPolicy{
					Action:            models.ActionViewBillingLedger,
					RequiredAuthLevel: models.AuthLevelMFA.String(),
					MaxAllowedRisk:    models.RiskLevelLow.String(),
					IsActive:          true,
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p, err := store.GetActionPolicy(ctx, models.ActionViewBillingLedger)
				assert.NoError(t, err)
				assert.NotNil(t, p)
			}
		}()
	}
	wg.Wait()
}

// countingReader counts how often each read type reaches the backing store
type countingReader struct {
	inner        Reader
	capabilities int
	actions      int
	fields       int
}

func (c *countingReader) MatchCapability(ctx context.Context, resourcePath, capability string) (*models.CapabilityPolicy, error) {
	c.capabilities++
	return c.inner.MatchCapability(ctx, resourcePath, capability)
}

func (c *countingReader) GetActionPolicy(ctx context.Context, action models.Action) (*models.ZeroTrustActionPolicy, error) {
	c.actions++
	return c.inner.GetActionPolicy(ctx, action)
}

func (c *countingReader) FieldPolicies(ctx context.Context, tableName, role string) (map[string]models.FieldAccessPolicy, error) {
	c.fields++
	return c.inner.FieldPolicies(ctx, tableName, role)
}

func TestRequestCacheMemoizesLookups(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.UpsertCapabilityPolicy(ctx, &models.CapabilityPolicy{
		ID: "cp1", ResourcePathPattern: "/patients/**", Capability: "read", SubjectRoles: "doctor",
	}))

	counter := &countingReader{inner: store}
	cache := NewRequestCache(counter)

	for i := 0; i < 3; i++ {
		_, err := cache.MatchCapability(ctx, "/patients/1", "read")
		require.NoError(t, err)
		_, err = cache.GetActionPolicy(ctx, models.ActionViewPatientRecord)
		require.NoError(t, err)
		_, err = cache.FieldPolicies(ctx, "patients", "doctor")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, counter.capabilities)
	assert.Equal(t, 1, counter.actions)
	assert.Equal(t, 1, counter.fields)
}

func TestRequestCacheIsolatesRequestsFromUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.UpsertActionPolicy(ctx, &models.ZeroTrustActionPolicy{
		Action:            models.ActionViewPatientRecord,
		RequiredAuthLevel: models.AuthLevelPassword.String(),
		MaxAllowedRisk:    models.RiskLevelMedium.String(),
		IsActive:          true,
	}))

	cache := NewRequestCache(store)
	before, err := cache.GetActionPolicy(ctx, models.ActionViewPatientRecord)
	require.NoError(t, err)
	assert.Equal(t, models.AuthLevelPassword, before.RequiredLevel())

	// A mid-request policy update must not change this request's view.
	require.NoError(t, store.UpsertActionPolicy(ctx, &models.ZeroTrustActionPolicy{
		Action:            models.ActionViewPatientRecord,
		RequiredAuthLevel: models.AuthLevelBiometric.String(),
		MaxAllowedRisk:    models.RiskLevelLow.String(),
		IsActive:          true,
	}))

	during, err := cache.GetActionPolicy(ctx, models.ActionViewPatientRecord)
	require.NoError(t, err)
	assert.Equal(t, models.AuthLevelPassword, during.RequiredLevel())

	// The next request sees the update.
	next := NewRequestCache(store)
	after, err := next.GetActionPolicy(ctx, models.ActionViewPatientRecord)
	require.NoError(t, err)
	assert.Equal(t, models.AuthLevelBiometric, after.RequiredLevel())
}
