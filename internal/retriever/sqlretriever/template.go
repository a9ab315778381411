// Package sqlretriever implements the SQL family of the retriever
// abstraction (spec §4.3), against SQLite/Postgres/MySQL, using a closed
// template language instead of string interpolation (spec §9 design note:
// "reject any template whose parameters are not in a declared schema").
package sqlretriever

import (
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"

	"github.com/orbitgw/orbit/internal/orbiterr"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// ParamType is a declared placeholder type in a Template's schema.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
)

// Template is a SQL string containing `{param_name}` placeholders plus the
// declared schema of those placeholders. Compile rejects any placeholder not
// present in Schema, closing off arbitrary interpolation.
type Template struct {
	SQL    string
	Schema map[string]ParamType
}

// compiled is the validated, positional form ready to execute with a
// database/sql driver: Query has `?` in place of each `{param}`, and Order
// lists the corresponding parameter names in occurrence order.
type compiled struct {
	Query string
	Order []string
}

// Compile validates every placeholder against t.Schema and rewrites the
// template into a driver-ready parameterized query. It never interpolates
// user-provided values into the SQL string itself.
func Compile(t Template) (*compiled, error) {
	var order []string

	env := make(map[string]any, len(t.Schema))

	for name, typ := range t.Schema {
		switch typ {
		case ParamInt:
			env[name] = 0
		case ParamFloat:
			env[name] = 0.0
		default:
			env[name] = ""
		}
	}

	query := placeholderRe.ReplaceAllStringFunc(t.SQL, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		order = append(order, name)

		return "?"
	})

	for _, name := range order {
		if _, ok := t.Schema[name]; !ok {
			return nil, orbiterr.New(orbiterr.KindConfig, fmt.Sprintf("sql template references undeclared parameter %q", name))
		}

		// Type-check the declared parameter against the schema env: an
		// undeclared or mistyped reference fails to compile.
		if _, err := expr.Compile(name, expr.Env(env)); err != nil {
			return nil, orbiterr.Wrap(orbiterr.KindConfig, fmt.Sprintf("sql template parameter %q failed schema validation", name), err)
		}
	}

	return &compiled{Query: query, Order: order}, nil
}

// Bind resolves the compiled template's positional args from a value map,
// rejecting any arg not declared in the original schema.
func (c *compiled) Bind(values map[string]any) ([]any, error) {
	args := make([]any, 0, len(c.Order))

	for _, name := range c.Order {
		v, ok := values[name]
		if !ok {
			return nil, orbiterr.New(orbiterr.KindValidation, "missing value for template parameter "+name)
		}

		args = append(args, v)
	}

	return args, nil
}
