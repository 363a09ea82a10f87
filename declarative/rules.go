// Package declarative enforces path/verb-scoped authorization rules loaded
// from configuration. All rules matching a request are AND-ed: each one is
// an independent gate and the first denial ends the request. This is the
// dual of the session manager's OR-composed strategy chain.
package declarative

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	goerrors "github.com/go-errors/errors"
	"gopkg.in/yaml.v3"
)

// Rule is one declarative authorization gate. Rules are immutable after
// loading.
type Rule struct {
	// Verb is the HTTP method the rule applies to.
	Verb string `json:"verb" yaml:"verb" validate:"required"`
	// Path is an Express-style pattern; named parameters are exposed to
	// the condition as params.
	Path string `json:"path" yaml:"path" validate:"required"`
	// Params restricts the rule to requests where at least one of the
	// listed parameters equals its stated value (OR across keys). A
	// non-matching request skips the rule, it is not denied.
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	// LoggedIn requires an authenticated principal before the condition
	// is even evaluated.
	LoggedIn bool `json:"loggedIn,omitempty" yaml:"loggedIn,omitempty"`
	// Loader names a registered context provider whose result is exposed
	// to the condition as item.
	Loader string `json:"loader,omitempty" yaml:"loader,omitempty"`
	// Condition is a boolean expression over {request, user, item,
	// params}. Evaluation errors count as false.
	Condition string `json:"condition" yaml:"condition" validate:"required"`
}

type jsonRuleFile struct {
	Routes [][]any `json:"routes"`
}

type yamlRuleFile struct {
	Routes []Rule `yaml:"routes"`
}

// Load reads rules from a JSON or YAML file, by extension. JSON files use
// the tuple form:
//
//	{"routes": [["GET", "/users/:user", {"private": "true"}, true, "user", "user.id == params.user"]]}
//
// where the params object, the loggedIn flag and the loader name may each be
// omitted. YAML files use a list of rule mappings under "routes".
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerrors.New(err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

func ParseYAML(data []byte) ([]Rule, error) {
	file := yamlRuleFile{}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerrors.New(err)
	}
	return file.Routes, nil
}

// ParseJSON parses the positional tuple form:
// [verb, path, [params,] [loggedIn,] [loader,] condition].
func ParseJSON(data []byte) ([]Rule, error) {
	file := jsonRuleFile{}
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, goerrors.New(err)
	}

	rules := make([]Rule, 0, len(file.Routes))
	for i, tuple := range file.Routes {
		rule, err := ruleFromTuple(tuple)
		if err != nil {
			return nil, fmt.Errorf("declarative: route %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func ruleFromTuple(tuple []any) (Rule, error) {
	// optional slots are recognized by type: params must be an object,
	// loggedIn a bool, loader a string
	if len(tuple) < 3 {
		return Rule{}, fmt.Errorf("expected [verb, path, ..., condition], got %d elements", len(tuple))
	}

	if _, ok := tuple[2].(map[string]any); !ok {
		tuple = insertAt(tuple, 2, nil)
	}
	if len(tuple) < 4 {
		return Rule{}, fmt.Errorf("missing condition")
	}
	if _, ok := tuple[3].(bool); !ok {
		tuple = insertAt(tuple, 3, false)
	}
	if len(tuple) < 6 {
		tuple = insertAt(tuple, 4, nil)
	}
	if len(tuple) != 6 {
		return Rule{}, fmt.Errorf("expected at most 6 elements, got %d", len(tuple))
	}

	rule := Rule{}
	var ok bool
	if rule.Verb, ok = tuple[0].(string); !ok {
		return Rule{}, fmt.Errorf("verb must be a string")
	}
	if rule.Path, ok = tuple[1].(string); !ok {
		return Rule{}, fmt.Errorf("path must be a string")
	}
	if params, ok := tuple[2].(map[string]any); ok {
		rule.Params = make(map[string]string, len(params))
		for key, val := range params {
			if val == nil {
				continue
			}
			rule.Params[key] = stringify(val)
		}
	}
	rule.LoggedIn, _ = tuple[3].(bool)
	if tuple[4] != nil {
		if rule.Loader, ok = tuple[4].(string); !ok {
			return Rule{}, fmt.Errorf("loader must be a string")
		}
	}
	if rule.Condition, ok = tuple[5].(string); !ok {
		return Rule{}, fmt.Errorf("condition must be a string")
	}
	return rule, nil
}

func insertAt(tuple []any, index int, value any) []any {
	out := make([]any, 0, len(tuple)+1)
	out = append(out, tuple[:index]...)
	out = append(out, value)
	return append(out, tuple[index:]...)
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case bool:
		if value {
			return "true"
		}
		return "false"
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprint(value)
	default:
		return fmt.Sprint(v)
	}
}
