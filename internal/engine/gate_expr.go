package engine

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// compileGateCondition compiles a gate's condition_logic against an
// environment built from params, so a name that is not a key of params
// fails to compile. Every expr-lang builtin is disabled except ceil,
// floor, min and max — never a general eval. The rest of expr-lang's
// operator set (string operators such as contains and matches, `in`,
// the ternary, member and index access) is still accepted; the grammar
// is not narrowed to arithmetic, comparisons and boolean connectives.
// No caller caches the compiled program, so condition_logic is compiled
// again on every turn; this function itself is stateless.
func compileGateCondition(conditionLogic string, params map[string]interface{}) (bool, error) {
	program, err := expr.Compile(conditionLogic, expr.Env(params), expr.AsBool(),
		expr.DisableAllBuiltins(),
		expr.EnableBuiltin("ceil"), expr.EnableBuiltin("floor"),
		expr.EnableBuiltin("min"), expr.EnableBuiltin("max"))
	if err != nil {
		return false, fmt.Errorf("compile condition: %w", err)
	}
	out, err := expr.Run(program, params)
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not evaluate to a boolean")
	}
	return result, nil
}
