// Package graphiql serves the gateway's embedded GraphiQL asset
// bundle, grounded on graphql/graphiql/graphiql.go: the same
// go:generate-driven statik embed, the generated `statik` subpackage
// itself is a build artifact and isn't committed here either (the
// teacher's own repository doesn't commit its generated package; both
// rely on `go generate` running before `go build`).
package graphiql

//go:generate statik -src ./dist

import (
	"net/http"

	"github.com/rakyll/statik/fs"

	_ "github.com/graphweave/fedgate/cmd/gateway/graphiql/statik"
)

// Handler serves the embedded dist/ bundle over HTTP. It panics if
// `go generate` hasn't produced the statik asset package yet, the
// same contract fs.New() gives the teacher's graphiql.Handler.
func Handler() http.Handler {
	statikFS, err := fs.New()
	if err != nil {
		panic(err)
	}
	return http.FileServer(statikFS)
}
