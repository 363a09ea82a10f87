package declarative

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	auth "github.com/xompass/vsaas-auth"
	"github.com/xompass/vsaas-auth/http_errors"
)

type CompileOptions struct {
	// Sensitive makes path matching case-sensitive.
	Sensitive bool
	// Strict rejects a trailing slash.
	Strict bool
	// Format tolerates a ".json"-style suffix on request paths.
	Format bool
}

type compiledRule struct {
	rule    Rule
	re      *regexp.Regexp
	keys    []pathKey
	program *vm.Program
}

// Engine holds the per-verb ordered lists of compiled rules. Immutable
// after New.
type Engine struct {
	rules map[string][]compiledRule
}

// New validates and compiles the rule set. Path patterns and conditions are
// compiled once here; a condition that does not parse is a configuration
// error, not a runtime denial.
func New(rules []Rule, opts CompileOptions) (*Engine, error) {
	validate := validator.New()
	engine := &Engine{rules: map[string][]compiledRule{}}

	for i, rule := range rules {
		if err := validate.Struct(rule); err != nil {
			return nil, fmt.Errorf("declarative: rule %d: %w", i, err)
		}

		verb := strings.ToLower(rule.Verb)
		path := rule.Path
		if opts.Format {
			path = pathToFormat(path)
		}
		re, keys, err := compilePath(path, opts.Sensitive, opts.Strict)
		if err != nil {
			return nil, fmt.Errorf("declarative: rule %d: bad path %q: %w", i, rule.Path, err)
		}

		program, err := expr.Compile(rule.Condition, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("declarative: rule %d: bad condition %q: %w", i, rule.Condition, err)
		}

		engine.rules[verb] = append(engine.rules[verb], compiledRule{
			rule:    rule,
			re:      re,
			keys:    keys,
			program: program,
		})
	}
	return engine, nil
}

// Middleware evaluates every rule matching the request's verb and path, in
// declared order, as an AND-chain: a request matching zero rules passes
// vacuously, and the first failing rule short-circuits the rest. Matched
// path parameters are handed to the condition as an overlay; the request
// itself is never mutated.
func (e *Engine) Middleware(sec *auth.Security) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			verb := strings.ToLower(c.Request().Method)
			user := auth.GetUser(c)
			userView := principalView(user)

			for _, cr := range e.rules[verb] {
				match := cr.re.FindStringSubmatch(c.Request().URL.Path)
				if match == nil {
					continue
				}

				params := make(map[string]string, len(cr.keys))
				for i, key := range cr.keys {
					if i+1 < len(match) {
						params[key.name] = match[i+1]
					}
				}

				// param constraints activate the rule when any one
				// declared key matches (OR across keys); otherwise the
				// rule is neutral, not a denial
				if len(cr.rule.Params) > 0 && !e.paramsMatch(c, cr.rule.Params, params) {
					continue
				}

				if cr.rule.LoggedIn && user == nil {
					return http_errors.Unauthenticated()
				}

				var item any
				if cr.rule.Loader != "" {
					loader := sec.Loader(cr.rule.Loader)
					if loader == nil {
						sec.Errorf("declarative rule for %s %s names unregistered loader %q", cr.rule.Verb, cr.rule.Path, cr.rule.Loader)
						return http_errors.Uninitialized()
					}
					var err error
					if item, err = loader(c); err != nil {
						sec.Errorf("loader %q failed: %v", cr.rule.Loader, err)
						return http_errors.InternalServerError("loader " + cr.rule.Loader + " failed")
					}
				}

				if !evalCondition(cr.program, c, userView, item, params) {
					return http_errors.Unauthorized()
				}
			}

			return next(c)
		}
	}
}

func (e *Engine) paramsMatch(c echo.Context, constraints map[string]string, overlay map[string]string) bool {
	for key, want := range constraints {
		if want == "" {
			continue
		}
		got, ok := overlay[key]
		if !ok {
			got = auth.ParamValue(c, key)
		}
		if got == want {
			return true
		}
	}
	return false
}

// evalCondition runs a compiled condition against a read-only view of the
// request. The sandbox sees only plain data, never the live echo context,
// and any evaluation error means the condition is false.
func evalCondition(program *vm.Program, c echo.Context, user map[string]any, item any, params map[string]string) bool {
	query := map[string]string{}
	for key, values := range c.QueryParams() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}
	request := map[string]any{
		"method": c.Request().Method,
		"path":   c.Request().URL.Path,
		"params": params,
		"query":  query,
	}
	env := map[string]any{
		"request": request,
		"req":     request,
		"user":    user,
		"item":    item,
		"params":  params,
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false
	}
	allowed, ok := out.(bool)
	return ok && allowed
}

// principalView renders the principal as plain data for the sandbox, so
// conditions address fields by their wire names regardless of the host
// application's principal type.
func principalView(user any) map[string]any {
	if user == nil {
		return nil
	}
	if m, ok := user.(map[string]any); ok {
		return m
	}
	raw, err := sonic.Marshal(user)
	if err != nil {
		return nil
	}
	view := map[string]any{}
	if err := sonic.Unmarshal(raw, &view); err != nil {
		return nil
	}
	return view
}
