package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/Hung6066/IVF-sub008/models"
)

// Reader is the read surface of the policy store. All reads either return a
// definite answer or an error; callers treat errors as deny (fail closed).
type Reader interface {
	// MatchCapability returns the most specific capability policy for the
	// resource path, or nil when nothing matches (default-deny).
	MatchCapability(ctx context.Context, resourcePath, capability string) (*models.CapabilityPolicy, error)
	// GetActionPolicy returns the zero-trust policy for the action, or the
	// default-deny policy when none is configured.
	GetActionPolicy(ctx context.Context, action models.Action) (*models.ZeroTrustActionPolicy, error)
	// FieldPolicies returns the field-access policies for one table and
	// role, keyed by field name.
	FieldPolicies(ctx context.Context, tableName, role string) (map[string]models.FieldAccessPolicy, error)
}

// Store adds the mutation surface used by policy administration
type Store interface {
	Reader
	ListCapabilityPolicies(ctx context.Context) ([]models.CapabilityPolicy, error)
	UpsertCapabilityPolicy(ctx context.Context, p *models.CapabilityPolicy) error
	ListActionPolicies(ctx context.Context) ([]models.ZeroTrustActionPolicy, error)
	UpsertActionPolicy(ctx context.Context, p *models.ZeroTrustActionPolicy) error
	DeactivateActionPolicy(ctx context.Context, action models.Action, updatedBy string) error
	UpsertFieldPolicy(ctx context.Context, p *models.FieldAccessPolicy) error
}

// GormStore is the persistent policy store
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a database-backed policy store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// MatchCapability loads the candidate policies and picks the most specific
// match in memory. Policy counts are small; the pattern semantics do not
// translate to SQL.
func (s *GormStore) MatchCapability(ctx context.Context, resourcePath, capability string) (*models.CapabilityPolicy, error) {
	var policies []models.CapabilityPolicy
	if err := s.db.WithContext(ctx).
		Where("capability IN ?", []string{capability, "*"}).
		Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("failed to load capability policies: %w", err)
	}
	return BestMatch(policies, resourcePath, capability), nil
}

// GetActionPolicy returns the action's policy row, or the default-deny
// policy when the action has no row or the row is deactivated.
func (s *GormStore) GetActionPolicy(ctx context.Context, action models.Action) (*models.ZeroTrustActionPolicy, error) {
	var p models.ZeroTrustActionPolicy
	err := s.db.WithContext(ctx).Where("action = ?", action).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultDenyActionPolicy(action), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load action policy: %w", err)
	}
	if !p.IsActive {
		return models.DefaultDenyActionPolicy(action), nil
	}
	return &p, nil
}

// FieldPolicies returns the redaction policies for one table/role pair
func (s *GormStore) FieldPolicies(ctx context.Context, tableName, role string) (map[string]models.FieldAccessPolicy, error) {
	var policies []models.FieldAccessPolicy
	if err := s.db.WithContext(ctx).
		Where("table_name = ? AND role = ?", tableName, role).
		Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("failed to load field access policies: %w", err)
	}
	out := make(map[string]models.FieldAccessPolicy, len(policies))
	for _, p := range policies {
		out[p.FieldName] = p
	}
	return out, nil
}

// ListCapabilityPolicies returns every capability policy
func (s *GormStore) ListCapabilityPolicies(ctx context.Context) ([]models.CapabilityPolicy, error) {
	var policies []models.CapabilityPolicy
	if err := s.db.WithContext(ctx).Order("policy_id").Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("failed to list capability policies: %w", err)
	}
	return policies, nil
}

// UpsertCapabilityPolicy writes a capability policy (last-writer-wins)
func (s *GormStore) UpsertCapabilityPolicy(ctx context.Context, p *models.CapabilityPolicy) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to save capability policy: %w", err)
	}
	return nil
}

// ListActionPolicies returns every zero-trust action policy
func (s *GormStore) ListActionPolicies(ctx context.Context) ([]models.ZeroTrustActionPolicy, error) {
	var policies []models.ZeroTrustActionPolicy
	if err := s.db.WithContext(ctx).Order("action").Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("failed to list action policies: %w", err)
	}
	return policies, nil
}

// UpsertActionPolicy replaces the action's policy row atomically. The write
// runs in a transaction so concurrent readers see either the previous or
// the new version, never a half-written row.
func (s *GormStore) UpsertActionPolicy(ctx context.Context, p *models.ZeroTrustActionPolicy) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(p).Error; err != nil {
			return fmt.Errorf("failed to save action policy: %w", err)
		}
		return nil
	})
}

// DeactivateActionPolicy marks the policy inactive. Action policies are
// never deleted.
func (s *GormStore) DeactivateActionPolicy(ctx context.Context, action models.Action, updatedBy string) error {
	result := s.db.WithContext(ctx).Model(&models.ZeroTrustActionPolicy{}).
		Where("action = ?", action).
		Updates(map[string]interface{}{"is_active": false, "updated_by": updatedBy})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate action policy: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertFieldPolicy writes a field-access policy. The unique index on
// (table, field, role) keeps at most one policy per tuple.
func (s *GormStore) UpsertFieldPolicy(ctx context.Context, p *models.FieldAccessPolicy) error {
	var existing models.FieldAccessPolicy
	err := s.db.WithContext(ctx).
		Where("table_name = ? AND field_name = ? AND role = ?", p.TableName_, p.FieldName, p.Role).
		First(&existing).Error
	if err == nil {
		p.ID = existing.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up field access policy: %w", err)
	}
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to save field access policy: %w", err)
	}
	return nil
}

// snapshot is the immutable state of a MemoryStore. Readers load the
// current snapshot without locking; writers replace it wholesale.
type snapshot struct {
	capabilities []models.CapabilityPolicy
	actions      map[models.Action]models.ZeroTrustActionPolicy
	fields       map[string]map[string]models.FieldAccessPolicy // table/role -> field -> policy
}

// MemoryStore is an in-memory policy store with copy-on-write snapshots.
// Reads are wait-free; writes serialize behind a mutex and atomically swap
// in the next snapshot.
type MemoryStore struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewMemoryStore creates an empty in-memory policy store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.current.Store(&snapshot{
		actions: make(map[models.Action]models.ZeroTrustActionPolicy),
		fields:  make(map[string]map[string]models.FieldAccessPolicy),
	})
	return s
}

func fieldKey(tableName, role string) string {
	return tableName + "/" + role
}

// MatchCapability picks the most specific matching policy from the snapshot
func (s *MemoryStore) MatchCapability(ctx context.Context, resourcePath, capability string) (*models.CapabilityPolicy, error) {
	snap := s.current.Load()
	return BestMatch(snap.capabilities, resourcePath, capability), nil
}

// GetActionPolicy returns the action's policy or the default-deny policy
func (s *MemoryStore) GetActionPolicy(ctx context.Context, action models.Action) (*models.ZeroTrustActionPolicy, error) {
	snap := s.current.Load()
	if p, ok := snap.actions[action]; ok && p.IsActive {
		out := p
		return &out, nil
	}
	return models.DefaultDenyActionPolicy(action), nil
}

// FieldPolicies returns the redaction policies for one table/role pair
func (s *MemoryStore) FieldPolicies(ctx context.Context, tableName, role string) (map[string]models.FieldAccessPolicy, error) {
	snap := s.current.Load()
	src := snap.fields[fieldKey(tableName, role)]
	out := make(map[string]models.FieldAccessPolicy, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, nil
}

// ListCapabilityPolicies returns every capability policy
func (s *MemoryStore) ListCapabilityPolicies(ctx context.Context) ([]models.CapabilityPolicy, error) {
	snap := s.current.Load()
	out := make([]models.CapabilityPolicy, len(snap.capabilities))
	copy(out, snap.capabilities)
	return out, nil
}

// UpsertCapabilityPolicy writes a capability policy into the next snapshot
func (s *MemoryStore) UpsertCapabilityPolicy(ctx context.Context, p *models.CapabilityPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cloneLocked()
	replaced := false
	for i := range next.capabilities {
		if next.capabilities[i].ID == p.ID {
			next.capabilities[i] = *p
			replaced = true
			break
		}
	}
	if !replaced {
		next.capabilities = append(next.capabilities, *p)
	}
	s.current.Store(next)
	return nil
}

// ListActionPolicies returns every zero-trust action policy
func (s *MemoryStore) ListActionPolicies(ctx context.Context) ([]models.ZeroTrustActionPolicy, error) {
	snap := s.current.Load()
	out := make([]models.ZeroTrustActionPolicy, 0, len(snap.actions))
	for _, p := range snap.actions {
		out = append(out, p)
	}
	return out, nil
}

// UpsertActionPolicy replaces the action's policy in the next snapshot
func (s *MemoryStore) UpsertActionPolicy(ctx context.Context, p *models.ZeroTrustActionPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cloneLocked()
	next.actions[p.Action] = *p
	s.current.Store(next)
	return nil
}

// DeactivateActionPolicy marks the policy inactive
func (s *MemoryStore) DeactivateActionPolicy(ctx context.Context, action models.Action, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cloneLocked()
	p, ok := next.actions[action]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.IsActive = false
	p.UpdatedBy = updatedBy
	next.actions[action] = p
	s.current.Store(next)
	return nil
}

// UpsertFieldPolicy writes a field-access policy into the next snapshot
func (s *MemoryStore) UpsertFieldPolicy(ctx context.Context, p *models.FieldAccessPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cloneLocked()
	key := fieldKey(p.TableName_, p.Role)
	if next.fields[key] == nil {
		next.fields[key] = make(map[string]models.FieldAccessPolicy)
	}
	next.fields[key][p.FieldName] = *p
	s.current.Store(next)
	return nil
}

func (s *MemoryStore) cloneLocked() *snapshot {
	prev := s.current.Load()
	next := &snapshot{
		capabilities: make([]models.CapabilityPolicy, len(prev.capabilities)),
		actions:      make(map[models.Action]models.ZeroTrustActionPolicy, len(prev.actions)),
		fields:       make(map[string]map[string]models.FieldAccessPolicy, len(prev.fields)),
	}
	copy(next.capabilities, prev.capabilities)
	for k, v := range prev.actions {
		next.actions[k] = v
	}
	for k, v := range prev.fields {
		inner := make(map[string]models.FieldAccessPolicy, len(v))
		for fk, fv := range v {
			inner[fk] = fv
		}
		next.fields[k] = inner
	}
	return next
}
