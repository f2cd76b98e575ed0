package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/mutation"
)

// Reader implements mutation.GraphReader against the same table Store
// writes, batching each call into one SQL query the way
// sqlgen.DB.batchFetch batches several BaseSelectQuery filters into
// one SELECT ... WHERE (pk, sk) IN (...) (sqlgen/db.go's batch.Func).
type Reader struct {
	Conn  *sql.DB
	Table string
}

func NewReader(conn *sql.DB) *Reader {
	return &Reader{Conn: conn, Table: DefaultTable}
}

func (r *Reader) table() string {
	if r.Table != "" {
		return r.Table
	}
	return DefaultTable
}

// GetBatch fetches every row named by keys in one query.
func (r *Reader) GetBatch(ctx context.Context, keys []mutation.Key) (map[mutation.Key]mutation.RowSnapshot, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	clause := inPairsClause(r.table(), "pk", "sk", len(keys))
	params := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		params = append(params, k.PK, k.SK)
	}

	rows, err := r.Conn.QueryContext(ctx, clause, params...)
	if err != nil {
		return nil, oops.Wrapf(err, "querying %s", r.table())
	}
	defer rows.Close()

	out := make(map[mutation.Key]mutation.RowSnapshot, len(keys))
	for rows.Next() {
		var pk, sk, attrsBlob, namesCSV string
		if err := rows.Scan(&pk, &sk, &attrsBlob, &namesCSV); err != nil {
			return nil, oops.Wrapf(err, "scanning row")
		}
		attrs, err := decodeAttributes(attrsBlob)
		if err != nil {
			return nil, err
		}
		out[mutation.Key{PK: pk, SK: sk}] = mutation.RowSnapshot{Attributes: attrs, Names: splitNames(namesCSV)}
	}
	return out, rows.Err()
}

// RelationsOfBatch fetches every relation row touching any of nodes,
// keyed back by whichever endpoint matched, for the DeleteNode
// fan-out (spec.md §4.8 "reachable from the node by inbound or
// outbound relation keys").
func (r *Reader) RelationsOfBatch(ctx context.Context, nodes []mutation.NodeRef) (map[mutation.NodeRef][]mutation.RelationSnapshot, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(nodes))
	args := make([]interface{}, len(nodes))
	for i, n := range nodes {
		placeholders[i] = "?"
		args[i] = n.Type + "#" + n.ID
	}
	in := strings.Join(placeholders, ", ")

	clause := "SELECT pk, sk, attributes, relation_names FROM " + r.table() +
		" WHERE pk IN (" + in + ") OR sk IN (" + in + ")"
	rows, err := r.Conn.QueryContext(ctx, clause, append(append([]interface{}{}, args...), args...)...)
	if err != nil {
		return nil, oops.Wrapf(err, "querying relations for %s", r.table())
	}
	defer rows.Close()

	byNode := make(map[mutation.NodeRef][]mutation.RelationSnapshot)
	for rows.Next() {
		var pk, sk, attrsBlob, namesCSV string
		if err := rows.Scan(&pk, &sk, &attrsBlob, &namesCSV); err != nil {
			return nil, oops.Wrapf(err, "scanning relation row")
		}
		from, ok1 := parseNodeRef(pk)
		to, ok2 := parseNodeRef(sk)
		if !ok1 || !ok2 {
			continue // a node row, not a relation row
		}
		snap := mutation.RelationSnapshot{From: from, To: to, Names: splitNames(namesCSV)}
		byNode[from] = append(byNode[from], snap)
		if to != from {
			byNode[to] = append(byNode[to], snap)
		}
	}
	return byNode, rows.Err()
}

func decodeAttributes(blob string) (map[string]interface{}, error) {
	if blob == "" || blob == "{}" {
		return nil, nil
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &attrs); err != nil {
		return nil, oops.Wrapf(err, "decoding attributes")
	}
	return attrs, nil
}

// parseNodeRef recovers a NodeRef from a relation row's "Type#ID"
// endpoint column; node rows store their own type/id directly in pk/sk
// with no separator, so a missing "#" means this is not an endpoint.
func parseNodeRef(s string) (mutation.NodeRef, bool) {
	idx := strings.IndexByte(s, '#')
	if idx < 0 {
		return mutation.NodeRef{}, false
	}
	return mutation.NodeRef{Type: s[:idx], ID: s[idx+1:]}, true
}

// inPairsClause builds a SELECT matching n (pk, sk) pairs against
// table, grounded on sqlgen's makeBatchQuery (sqlgen/db.go) which
// folds several single-row filters into one OR-of-ANDs WHERE clause.
func inPairsClause(table, pkCol, skCol string, n int) string {
	pairs := make([]string, n)
	for i := range pairs {
		pairs[i] = "(" + pkCol + " = ? AND " + skCol + " = ?)"
	}
	return "SELECT pk, sk, attributes, relation_names FROM " + table + " WHERE " + strings.Join(pairs, " OR ")
}
