// Package store adapts internal/mutation's WriteItems to a concrete
// SQL backend, grounded on the teacher's sqlgen query builders
// (SimpleWhere/*Query.ToSQL()) and its WithTx transaction idiom.
// Unlike sqlgen, which maps one Go struct to one table, every node and
// relation row here lands in a single wide table keyed by (pk, sk)
// with a JSON attribute blob column plus a relation-name column,
// mirroring the single-table (pk, sk) design the graph-mutation model
// itself assumes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	// registers the "mysql" database/sql driver.
	_ "github.com/go-sql-driver/mysql"
	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/mutation"
)

// CommitHook is notified with every transaction Store commits
// successfully. internal/cache/purge uses this to trigger
// tag-based cache invalidation off the write path itself rather than
// only off the single request that issued the mutation, the same way
// livesql's dbTracker fans a parsed binlog update out to every
// registered dbResource.
type CommitHook func(ctx context.Context, txn *mutation.Transaction)

// DefaultTable is the table Store reads and writes by default; override
// via Store.Table for a differently-named deployment.
const DefaultTable = "graph_rows"

// Store executes mutation.Transactions against a *sql.DB, one SQL
// transaction per call, committing WriteItems in the order the
// planner produced them (spec.md §4.8's (pk, sk) ordering).
type Store struct {
	Conn  *sql.DB
	Table string

	hooksMu sync.Mutex
	hooks   []CommitHook
}

func New(conn *sql.DB) *Store {
	return &Store{Conn: conn, Table: DefaultTable}
}

func (s *Store) table() string {
	if s.Table != "" {
		return s.Table
	}
	return DefaultTable
}

// Subscribe registers hook to run after every transaction this Store
// commits. Hooks run synchronously, in registration order, after the
// database commit succeeds; a slow or failing hook does not roll back
// the transaction it was notified about.
func (s *Store) Subscribe(hook CommitHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *Store) notify(ctx context.Context, txn *mutation.Transaction) {
	s.hooksMu.Lock()
	hooks := append([]CommitHook(nil), s.hooks...)
	s.hooksMu.Unlock()
	for _, hook := range hooks {
		hook(ctx, txn)
	}
}

// Apply executes every WriteItem in txn inside one database
// transaction, rolling back entirely on the first failure.
func (s *Store) Apply(ctx context.Context, txn *mutation.Transaction) error {
	tx, err := s.Conn.BeginTx(ctx, nil)
	if err != nil {
		return oops.Wrapf(err, "beginning mutation transaction")
	}
	defer tx.Rollback()

	for _, item := range txn.WriteItems {
		if err := s.apply(ctx, tx, item); err != nil {
			return oops.Wrapf(err, "applying write item for %s", item.Key)
		}
	}

	if err := tx.Commit(); err != nil {
		return oops.Wrapf(err, "committing mutation transaction")
	}
	s.notify(ctx, txn)
	return nil
}

func (s *Store) apply(ctx context.Context, tx *sql.Tx, item *mutation.WriteItem) error {
	switch item.Op {
	case mutation.Put:
		return s.put(ctx, tx, item)
	case mutation.Update:
		return s.update(ctx, tx, item)
	case mutation.Delete:
		return s.delete(ctx, tx, item)
	default:
		return fmt.Errorf("unknown write op %d", item.Op)
	}
}

// put upserts a full row: a freshly-inserted node may collide with a
// row a concurrent transaction already created for the same key (the
// planner's Insert+Insert case is rejected earlier, at merge time, so
// a collision here is always against a *different* transaction), so
// Put is a plain upsert rather than a bare INSERT.
func (s *Store) put(ctx context.Context, tx *sql.Tx, item *mutation.WriteItem) error {
	blob, err := json.Marshal(item.Attributes)
	if err != nil {
		return oops.Wrapf(err, "encoding attributes")
	}

	clause := "INSERT INTO " + s.table() + " (pk, sk, attributes, relation_names) VALUES (?, ?, ?, ?)" +
		" ON DUPLICATE KEY UPDATE attributes = VALUES(attributes)"
	_, err = tx.ExecContext(ctx, clause, item.Key.PK, item.Key.SK, string(blob), "")
	return err
}

// update reads the row's current attributes and relation-name set
// inside the transaction (blocking concurrent writers via the
// database's row lock on SELECT ... FOR UPDATE), folds in item's
// attribute patch and add/delete name deltas, then upserts the
// result. The read-modify-write happens in Go rather than as a single
// SQL expression because MySQL has no built-in string-set type; the
// relation_names column is a comma-joined set maintained entirely on
// the write path.
func (s *Store) update(ctx context.Context, tx *sql.Tx, item *mutation.WriteItem) error {
	var currentAttrs, currentNames string
	row := tx.QueryRowContext(ctx,
		"SELECT attributes, relation_names FROM "+s.table()+" WHERE pk = ? AND sk = ? FOR UPDATE",
		item.Key.PK, item.Key.SK)
	switch err := row.Scan(&currentAttrs, &currentNames); err {
	case nil:
	case sql.ErrNoRows:
		currentAttrs, currentNames = "{}", ""
	default:
		return oops.Wrapf(err, "reading current row")
	}

	merged, err := mergeAttributeBlobs(currentAttrs, item.Attributes)
	if err != nil {
		return err
	}
	names := applyNameDelta(splitNames(currentNames), item.AddNames, item.DeleteNames)

	clause := "INSERT INTO " + s.table() + " (pk, sk, attributes, relation_names) VALUES (?, ?, ?, ?)" +
		" ON DUPLICATE KEY UPDATE attributes = VALUES(attributes), relation_names = VALUES(relation_names)"
	_, err = tx.ExecContext(ctx, clause, item.Key.PK, item.Key.SK, merged, joinNames(names))
	return err
}

func (s *Store) delete(ctx context.Context, tx *sql.Tx, item *mutation.WriteItem) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM "+s.table()+" WHERE pk = ? AND sk = ?", item.Key.PK, item.Key.SK)
	return err
}

// mergeAttributeBlobs folds patch onto the JSON object stored in
// currentBlob, last-writer-wins per key, and re-serializes.
func mergeAttributeBlobs(currentBlob string, patch map[string]interface{}) (string, error) {
	merged := map[string]interface{}{}
	if currentBlob != "" {
		if err := json.Unmarshal([]byte(currentBlob), &merged); err != nil {
			return "", oops.Wrapf(err, "decoding current attributes")
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	blob, err := json.Marshal(merged)
	if err != nil {
		return "", oops.Wrapf(err, "encoding merged attributes")
	}
	return string(blob), nil
}

func splitNames(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

func joinNames(names []string) string {
	return strings.Join(names, ",")
}

// applyNameDelta adds and removes names from current, deduplicated and
// sorted so repeated applications of the same delta are idempotent.
func applyNameDelta(current, add, del []string) []string {
	set := make(map[string]bool, len(current)+len(add))
	for _, n := range current {
		set[n] = true
	}
	for _, n := range del {
		delete(set, n)
	}
	for _, n := range add {
		set[n] = true
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
