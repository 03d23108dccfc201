package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const ToolMathEvaluate = "math.evaluate"

var mathCharset = regexp.MustCompile(`^[\d\s\+\-\*/%\^\(\)\.,]+$`)

type MathArgs struct {
	Expression string `json:"expression" desc:"Arithmetic expression, e.g. (2500000 * 0.12) / 12"`
	Precision  int    `json:"precision,omitempty" desc:"Decimal places to round to" default:"2"`
}

type MathEvaluateOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

func EvaluateMath(_ context.Context, in MathArgs) (any, error) {
	expr := strings.ReplaceAll(strings.TrimSpace(in.Expression), ",", "")
	if expr == "" {
		return nil, errors.New("expression is empty")
	}
	if !mathCharset.MatchString(expr) {
		return nil, errors.New("expression contains invalid characters")
	}

	p := &exprParser{src: expr}
	val, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if p.skip(); p.pos < len(p.src) {
		return nil, fmt.Errorf("unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	if math.IsInf(val, 0) || math.IsNaN(val) {
		return nil, errors.New("result is not a finite number")
	}

	if in.Precision >= 0 && in.Precision <= 10 {
		scale := math.Pow(10, float64(in.Precision))
		val = math.Round(val*scale) / scale
	}
	return MathEvaluateOutput{Expression: expr, Result: val}, nil
}

// exprParser is a precedence-climbing evaluator over + - * / % ^ and parentheses.
type exprParser struct {
	src string
	pos int
}

var binaryPrec = map[byte]int{'+': 1, '-': 1, '*': 2, '/': 2, '%': 2, '^': 3}

func (p *exprParser) expr(minPrec int) (float64, error) {
	lhs, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		p.skip()
		if p.pos >= len(p.src) {
			return lhs, nil
		}
		op := p.src[p.pos]
		prec, ok := binaryPrec[op]
		if !ok || prec < minPrec {
			return lhs, nil
		}
		p.pos++

		next := prec + 1
		if op == '^' {
			next = prec
		}
		rhs, err := p.expr(next)
		if err != nil {
			return 0, err
		}
		if lhs, err = apply(op, lhs, rhs); err != nil {
			return 0, err
		}
	}
}

func apply(op byte, a, b float64) (float64, error) {
	switch op {
	case '+':
		return a + b, nil
	case '-':
		return a - b, nil
	case '*':
		return a * b, nil
	case '/':
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	case '%':
		if b == 0 {
			return 0, errors.New("modulo by zero")
		}
		return math.Mod(a, b), nil
	case '^':
		return math.Pow(a, b), nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

func (p *exprParser) unary() (float64, error) {
	p.skip()
	if p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '+':
			p.pos++
			return p.unary()
		case '-':
			p.pos++
			v, err := p.unary()
			return -v, err
		case '(':
			p.pos++
			v, err := p.expr(0)
			if err != nil {
				return 0, err
			}
			p.skip()
			if p.pos >= len(p.src) || p.src[p.pos] != ')' {
				return 0, fmt.Errorf("missing closing parenthesis at position %d", p.pos)
			}
			p.pos++
			return v, nil
		}
	}
	return p.number()
}

func (p *exprParser) number() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.src[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) skip() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}
