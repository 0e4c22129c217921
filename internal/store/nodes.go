package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moryhq/mory/internal/engine"
)

// DB implements the engine's storage boundary.
var _ engine.Storage = (*DB)(nil)

const nodeColumns = `id, user_id, path, memory_type, subject, title, value, detail,
	confidence, importance, utility, access_count,
	version, supersedes, conflict_flag, source,
	created_at, updated_at, last_accessed_at, archived_at`

func scanNode(row interface{ Scan(...any) error }) (engine.PersistedMemoryNode, error) {
	var n engine.PersistedMemoryNode
	var title, detail, supersedes, source, lastAccessed, archived sql.NullString
	var utility sql.NullFloat64
	var conflictFlag int

	err := row.Scan(
		&n.ID, &n.UserID, &n.Path, &n.MemoryType, &n.Subject, &title, &n.Value, &detail,
		&n.Confidence, &n.Importance, &utility, &n.AccessCount,
		&n.Version, &supersedes, &conflictFlag, &source,
		&n.CreatedAt, &n.UpdatedAt, &lastAccessed, &archived,
	)
	if err != nil {
		return n, err
	}
	n.Title = title.String
	n.Detail = detail.String
	n.Supersedes = supersedes.String
	n.Source = source.String
	n.LastAccessedAt = lastAccessed.String
	n.ArchivedAt = archived.String
	n.Utility = utility.Float64
	n.ConflictFlag = conflictFlag != 0
	return n, nil
}

func scanNodes(rows *sql.Rows) ([]engine.PersistedMemoryNode, error) {
	defer rows.Close()
	var nodes []engine.PersistedMemoryNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Insert persists a new node snapshot. An empty ID gets a generated UUID.
func (db *DB) Insert(ctx context.Context, node *engine.PersistedMemoryNode) error {
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if node.CreatedAt == "" {
		node.CreatedAt = now
	}
	if node.UpdatedAt == "" {
		node.UpdatedAt = now
	}

	var utility any
	if node.Utility != 0 {
		utility = node.Utility
	}
	conflictFlag := 0
	if node.ConflictFlag {
		conflictFlag = 1
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO mory_nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, node.UserID, node.Path, node.MemoryType, node.Subject,
		nullable(node.Title), node.Value, nullable(node.Detail),
		node.Confidence, node.Importance, utility, node.AccessCount,
		node.Version, nullable(node.Supersedes), conflictFlag, nullable(node.Source),
		node.CreatedAt, node.UpdatedAt, nullable(node.LastAccessedAt), nullable(node.ArchivedAt),
	)
	if err != nil {
		return fmt.Errorf("insert node %s: %w", node.Path, err)
	}
	return nil
}

// List returns a user's nodes, active by default, newest first.
func (db *DB) List(ctx context.Context, userID string, opts engine.ListOptions) ([]engine.PersistedMemoryNode, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + nodeColumns + " FROM mory_nodes WHERE user_id = ?")
	args := []any{userID}

	if !opts.IncludeArchived {
		sb.WriteString(" AND archived_at IS NULL")
	}
	if len(opts.MemoryTypes) > 0 {
		sb.WriteString(" AND memory_type IN (?" + strings.Repeat(", ?", len(opts.MemoryTypes)-1) + ")")
		for _, t := range opts.MemoryTypes {
			args = append(args, t)
		}
	}
	if len(opts.PathPrefixes) > 0 {
		clauses := make([]string, len(opts.PathPrefixes))
		for i, prefix := range opts.PathPrefixes {
			clauses[i] = "path LIKE ?"
			args = append(args, prefix+"%")
		}
		sb.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
	}
	sb.WriteString(" ORDER BY updated_at DESC")
	if opts.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
	}

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return scanNodes(rows)
}

// ReadByPath returns the nodes at an exact canonical path, newest first.
func (db *DB) ReadByPath(ctx context.Context, userID, path string, includeArchived bool) ([]engine.PersistedMemoryNode, error) {
	query := "SELECT " + nodeColumns + " FROM mory_nodes WHERE user_id = ? AND path = ?"
	if !includeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY version DESC, updated_at DESC"

	rows, err := db.QueryContext(ctx, query, userID, path)
	if err != nil {
		return nil, fmt.Errorf("read path %s: %w", path, err)
	}
	return scanNodes(rows)
}

// ReadByID returns one node, or nil when absent.
func (db *DB) ReadByID(ctx context.Context, userID, id string) (*engine.PersistedMemoryNode, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+nodeColumns+" FROM mory_nodes WHERE user_id = ? AND id = ?", userID, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read node %s: %w", id, err)
	}
	return &n, nil
}

// Update applies a partial patch; nil fields are left untouched.
func (db *DB) Update(ctx context.Context, userID, id string, patch engine.NodePatch) error {
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Value != nil {
		add("value", *patch.Value)
	}
	if patch.Detail != nil {
		add("detail", nullable(*patch.Detail))
	}
	if patch.Confidence != nil {
		add("confidence", *patch.Confidence)
	}
	if patch.Importance != nil {
		add("importance", *patch.Importance)
	}
	if patch.Utility != nil {
		add("utility", *patch.Utility)
	}
	if patch.AccessCount != nil {
		add("access_count", *patch.AccessCount)
	}
	if patch.Version != nil {
		add("version", *patch.Version)
	}
	if patch.Supersedes != nil {
		add("supersedes", nullable(*patch.Supersedes))
	}
	if patch.ConflictFlag != nil {
		flag := 0
		if *patch.ConflictFlag {
			flag = 1
		}
		add("conflict_flag", flag)
	}
	if patch.Source != nil {
		add("source", nullable(*patch.Source))
	}
	if patch.UpdatedAt != nil {
		add("updated_at", *patch.UpdatedAt)
	}
	if patch.LastAccessedAt != nil {
		add("last_accessed_at", *patch.LastAccessedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, userID, id)
	_, err := db.ExecContext(ctx,
		"UPDATE mory_nodes SET "+strings.Join(sets, ", ")+" WHERE user_id = ? AND id = ?", args...)
	if err != nil {
		return fmt.Errorf("update node %s: %w", id, err)
	}
	return nil
}

// Archive marks nodes out of the active set. Already-archived ids are
// untouched, so the call is idempotent; rows are never deleted.
func (db *DB) Archive(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(time.RFC3339)

	args := []any{now, userID}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE mory_nodes SET archived_at = ?
		WHERE user_id = ? AND id IN (?`+strings.Repeat(", ?", len(ids)-1)+`)
		AND archived_at IS NULL`, args...)
	if err != nil {
		return 0, fmt.Errorf("archive nodes: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive rows affected: %w", err)
	}
	return int(affected), nil
}

// CountActive returns the number of active nodes for a user.
func (db *DB) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM mory_nodes WHERE user_id = ? AND archived_at IS NULL", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active nodes: %w", err)
	}
	return count, nil
}
