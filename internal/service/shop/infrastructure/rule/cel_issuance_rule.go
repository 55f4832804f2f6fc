package rule

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// DefaultExpression 每第 interval 笔订单发放一次，interval 为 0 时关闭。
const DefaultExpression = "interval > 0 && orderCount % interval == 0"

// CELIssuanceRule 用 CEL 表达式决定是否发放折扣码，实现 domain.IssuanceRule。
// 表达式在构造时编译一次，Program 可并发求值。
type CELIssuanceRule struct {
	expr string
	prg  cel.Program
}

// NewCELIssuanceRule expr 为空时使用 DefaultExpression；表达式必须返回 bool。
func NewCELIssuanceRule(expr string) (*CELIssuanceRule, error) {
	if expr == "" {
		expr = DefaultExpression
	}
	env, err := cel.NewEnv(
		cel.Variable("orderCount", cel.IntType),
		cel.Variable("interval", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile issuance rule %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("issuance rule %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build cel program")
	}
	return &CELIssuanceRule{expr: expr, prg: prg}, nil
}

func (r *CELIssuanceRule) Expression() string {
	return r.expr
}

func (r *CELIssuanceRule) ShouldIssue(orderCount, interval int) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"orderCount": int64(orderCount),
		"interval":   int64(interval),
	})
	if err != nil {
		return false, errors.Wrap(err, "evaluate issuance rule")
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, errors.Errorf("issuance rule returned %T", out.Value())
	}
	return ok, nil
}
