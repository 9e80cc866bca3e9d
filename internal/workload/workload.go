package workload

import "time"

// DefaultValue stands in for any query field the caller left empty.
const DefaultValue = "!default!"

type Status string

const (
	StatusHealthy   Status = "Healthy"
	StatusUnhealthy Status = "Unhealthy"
)

// Query identifies a workload. UUID is the primary key when set;
// otherwise Name and Namespace select every matching workload.
type Query struct {
	Name      string
	Namespace string
	UUID      string
}

// Normalize returns a copy of q with empty fields replaced by DefaultValue.
func (q Query) Normalize() Query {
	return Query{
		Name:      orDefault(q.Name),
		Namespace: orDefault(q.Namespace),
		UUID:      orDefault(q.UUID),
	}
}

// HasUUID reports whether the query carries a real UUID.
func (q Query) HasUUID() bool {
	return q.UUID != "" && q.UUID != DefaultValue
}

// Key is a stable string form of the normalized query.
func (q Query) Key() string {
	n := q.Normalize()
	return n.Name + "/" + n.Namespace + "/" + n.UUID
}

// Matches reports whether r has the query's name and namespace.
func (q Query) Matches(r Record) bool {
	return r.Name == q.Name && r.Namespace == q.Namespace
}

// Record is the cached view of a single workload.
type Record struct {
	UUID              string
	Name              string
	Namespace         string
	ClusterName       string
	Status            Status
	LastUpdateRequest time.Time
}

// IsStale reports whether r has gone unrequested for at least threshold.
func (r Record) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(r.LastUpdateRequest) >= threshold
}

// Item is the wire form of a workload status, used both by the upstream
// API and by the inbound /services endpoint.
type Item struct {
	UUID        string `json:"workload_uuid"`
	ClusterName string `json:"cluster_name"`
	Status      Status `json:"status"`
}

// ToRecord attaches the query's name and namespace to an upstream item.
func (i Item) ToRecord(q Query, now time.Time) Record {
	return Record{
		UUID:              i.UUID,
		Name:              q.Name,
		Namespace:         q.Namespace,
		ClusterName:       i.ClusterName,
		Status:            i.Status,
		LastUpdateRequest: now,
	}
}

// ToItem strips the identity fields that are not part of the wire format.
func (r Record) ToItem() Item {
	return Item{
		UUID:        r.UUID,
		ClusterName: r.ClusterName,
		Status:      r.Status,
	}
}

// CacheOptions controls how the worker uses its cache.
type CacheOptions struct {
	// ShouldFetch allows lookups to be answered from the cache and stores
	// fetched results in it.
	ShouldFetch bool
	// ShouldUpdate enables the background refresh loop.
	ShouldUpdate bool
}

func orDefault(s string) string {
	if s == "" {
		return DefaultValue
	}
	return s
}
