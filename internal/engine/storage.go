package engine

import "context"

// StoredMemoryNode is the minimal persisted view the decision core reads.
// Timestamps are ISO-8601 strings; the core never parses them except where
// a recency calculation requires it.
type StoredMemoryNode struct {
	ID          string  `json:"id"`
	MoryPath    string  `json:"moryPath"`
	Value       string  `json:"value"`
	Confidence  float64 `json:"confidence"`
	UpdatedAt   string  `json:"updatedAt"`
	AccessCount int     `json:"accessCount,omitempty"`
	Importance  float64 `json:"importance,omitempty"`
	Utility     float64 `json:"utility,omitempty"`
}

// VersionedMemoryNode extends StoredMemoryNode with conflict history.
// Version starts at 1 and strictly increases on every replace.
type VersionedMemoryNode struct {
	StoredMemoryNode
	Version      int    `json:"version"`
	Subject      string `json:"subject,omitempty"`
	Source       string `json:"source,omitempty"`
	ObservedAt   string `json:"observedAt,omitempty"`
	Supersedes   string `json:"supersedes,omitempty"`
	ConflictFlag bool   `json:"conflictFlag,omitempty"`
}

// PersistedMemoryNode is the full storage row, owned by the storage
// adapter. The engine reads these and emits decisions; it never mutates
// them in place.
type PersistedMemoryNode struct {
	ID             string  `json:"id"`
	UserID         string  `json:"userId"`
	Path           string  `json:"path"`
	MemoryType     string  `json:"memoryType"`
	Subject        string  `json:"subject"`
	Title          string  `json:"title,omitempty"`
	Value          string  `json:"value"`
	Detail         string  `json:"detail,omitempty"`
	Confidence     float64 `json:"confidence"`
	Importance     float64 `json:"importance"`
	Utility        float64 `json:"utility,omitempty"`
	AccessCount    int     `json:"accessCount"`
	Version        int     `json:"version"`
	Supersedes     string  `json:"supersedes,omitempty"`
	ConflictFlag   bool    `json:"conflictFlag,omitempty"`
	Source         string  `json:"source,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
	LastAccessedAt string  `json:"lastAccessedAt,omitempty"`
	ArchivedAt     string  `json:"archivedAt,omitempty"`
}

// Stored projects the persisted row down to the decision core's view.
func (n PersistedMemoryNode) Stored() StoredMemoryNode {
	return StoredMemoryNode{
		ID:          n.ID,
		MoryPath:    n.Path,
		Value:       n.Value,
		Confidence:  n.Confidence,
		UpdatedAt:   n.UpdatedAt,
		AccessCount: n.AccessCount,
		Importance:  n.Importance,
		Utility:     n.Utility,
	}
}

// Versioned projects the persisted row to the conflict resolver's view.
func (n PersistedMemoryNode) Versioned() VersionedMemoryNode {
	return VersionedMemoryNode{
		StoredMemoryNode: n.Stored(),
		Version:          n.Version,
		Subject:          n.Subject,
		Source:           n.Source,
		Supersedes:       n.Supersedes,
		ConflictFlag:     n.ConflictFlag,
	}
}

// ListOptions narrows a storage listing.
type ListOptions struct {
	IncludeArchived bool
	MemoryTypes     []string
	PathPrefixes    []string
	Limit           int
}

// NodePatch carries partial updates; nil fields are left untouched.
type NodePatch struct {
	Value          *string
	Detail         *string
	Confidence     *float64
	Importance     *float64
	Utility        *float64
	AccessCount    *int
	Version        *int
	Supersedes     *string
	ConflictFlag   *bool
	Source         *string
	UpdatedAt      *string
	LastAccessedAt *string
}

// Storage is the persistence boundary. The engine never opens its own
// persistence; it is handed snapshots and returns decisions. Archive must
// be idempotent on already-archived ids, and implementations must not
// delete rows (audit trail stays intact).
type Storage interface {
	List(ctx context.Context, userID string, opts ListOptions) ([]PersistedMemoryNode, error)
	ReadByPath(ctx context.Context, userID, path string, includeArchived bool) ([]PersistedMemoryNode, error)
	ReadByID(ctx context.Context, userID, id string) (*PersistedMemoryNode, error)
	Insert(ctx context.Context, node *PersistedMemoryNode) error
	Update(ctx context.Context, userID, id string, patch NodePatch) error
	Archive(ctx context.Context, userID string, ids []string) (int, error)
}
