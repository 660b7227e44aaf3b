package policy

import (
	"context"

	"github.com/Hung6066/IVF-sub008/models"
)

// RequestCache is a read-through cache over a policy Reader, scoped to one
// pipeline run. It is created per request, passed in explicitly, and
// discarded at request end: policies stay consistent within the request
// while updates are visible on the next one. Not safe for use across
// requests.
type RequestCache struct {
	reader Reader

	capabilities map[string]*models.CapabilityPolicy
	actions      map[models.Action]*models.ZeroTrustActionPolicy
	fields       map[string]map[string]models.FieldAccessPolicy
}

// NewRequestCache creates a cache for one request scope
func NewRequestCache(reader Reader) *RequestCache {
	return &RequestCache{
		reader:       reader,
		capabilities: make(map[string]*models.CapabilityPolicy),
		actions:      make(map[models.Action]*models.ZeroTrustActionPolicy),
		fields:       make(map[string]map[string]models.FieldAccessPolicy),
	}
}

// MatchCapability memoizes capability matches by (path, capability)
func (c *RequestCache) MatchCapability(ctx context.Context, resourcePath, capability string) (*models.CapabilityPolicy, error) {
	key := resourcePath + "\x00" + capability
	if p, ok := c.capabilities[key]; ok {
		return p, nil
	}
	p, err := c.reader.MatchCapability(ctx, resourcePath, capability)
	if err != nil {
		return nil, err
	}
	c.capabilities[key] = p
	return p, nil
}

// GetActionPolicy memoizes action policy lookups
func (c *RequestCache) GetActionPolicy(ctx context.Context, action models.Action) (*models.ZeroTrustActionPolicy, error) {
	if p, ok := c.actions[action]; ok {
		return p, nil
	}
	p, err := c.reader.GetActionPolicy(ctx, action)
	if err != nil {
		return nil, err
	}
	c.actions[action] = p
	return p, nil
}

// FieldPolicies memoizes field policy lookups by (table, role). The masking
// engine resolves policies once per pipeline run and reuses them across all
// elements of a collection.
func (c *RequestCache) FieldPolicies(ctx context.Context, tableName, role string) (map[string]models.FieldAccessPolicy, error) {
	key := fieldKey(tableName, role)
	if m, ok := c.fields[key]; ok {
		return m, nil
	}
	m, err := c.reader.FieldPolicies(ctx, tableName, role)
	if err != nil {
		return nil, err
	}
	c.fields[key] = m
	return m, nil
}
