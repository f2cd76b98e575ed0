// Package authz evaluates the directive-level authorization vocabulary
// lifted onto bound fields by internal/bind — @authenticated,
// @requiresScopes and @authorized (spec.md §4.2, §7) — against an
// already-verified Identity, pruning unauthorized fields out of a
// bound operation before it ever reaches the planner.
//
// Token verification itself is explicitly out of scope (spec.md §1:
// "only the shape of its output — identity + group set — matters").
// Identity is the narrow, already-verified shape this package consumes,
// grounded on the VerifiedToken result type in
// original_source/common/jwt-verifier/src/tests.rs.
package authz

import (
	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/schema"
)

// Identity is the already-verified caller the gateway's HTTP layer
// hands to Enforce. It carries no verification logic of its own.
type Identity struct {
	Subject string
	Groups  []string
	Claims  map[string]interface{}
}

func (id Identity) authenticated() bool { return id.Subject != "" }

// heldScopes interns id.Groups against g's string table so they can be
// compared against a schema.ScopeDisjunction's scope ids by binary
// search. A group name the schema never interned (because no directive
// anywhere references that scope) simply can't be held, so it is
// dropped rather than causing an error.
func (id Identity) heldScopes(g *schema.Graph) ident.SortedSet {
	ids := make([]ident.ID, 0, len(id.Groups))
	for _, group := range id.Groups {
		if sid, ok := g.Strings.Lookup(group); ok {
			ids = append(ids, sid)
		}
	}
	return ident.NewSortedSet(ids)
}
