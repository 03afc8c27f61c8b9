package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// funcDef describes one of the fixed built-in functions.
type funcDef struct {
	arity int
	apply func(args []float64) float64
}

// functions is the closed function set. Formulas cannot call anything else.
var functions = map[string]funcDef{
	"MIN":   {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"MAX":   {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
	"POW":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"ABS":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"ROUND": {1, func(a []float64) float64 { return math.Round(a[0]) }},
	"CEIL":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"FLOOR": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"SQRT":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
}

// IsFunction reports whether name is one of the built-in function names.
func IsFunction(name string) bool {
	_, ok := functions[name]
	return ok
}

// node is an evaluable expression tree node.
type node interface {
	eval(vars map[string]float64) (float64, error)
}

type numberNode float64

func (n numberNode) eval(map[string]float64) (float64, error) {
	return float64(n), nil
}

type variableNode string

func (n variableNode) eval(vars map[string]float64) (float64, error) {
	value, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("unreplaced variable: %s", string(n))
	}
	return value, nil
}

type unaryNode struct {
	operand node
}

func (n unaryNode) eval(vars map[string]float64) (float64, error) {
	value, err := n.operand.eval(vars)
	if err != nil {
		return 0, err
	}
	return -value, nil
}

type binaryNode struct {
	op          byte
	left, right node
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	right, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return left + right, nil
	case '-':
		return left - right, nil
	case '*':
		return left * right, nil
	default:
		return left / right, nil
	}
}

type callNode struct {
	name string
	args []node
}

func (n callNode) eval(vars map[string]float64) (float64, error) {
	args := make([]float64, len(n.args))
	for i, arg := range n.args {
		value, err := arg.eval(vars)
		if err != nil {
			return 0, err
		}
		args[i] = value
	}
	return functions[n.name].apply(args), nil
}

// Token kinds produced by the lexer.
const (
	tokenNumber = iota
	tokenIdent
	tokenOp    // + - * /
	tokenLeft  // (
	tokenRight // )
	tokenComma
	tokenEOF
)

type token struct {
	kind int
	text string
	pos  int
}

// lex splits a formula into tokens. Anything outside the closed grammar
// (digits, '.', uppercase identifiers, + - * / ( ) , and whitespace) is
// rejected here, which enforces the character whitelist before any
// evaluation happens.
func lex(formula string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(formula) {
		c := formula[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(formula) && (formula[i] >= '0' && formula[i] <= '9' || formula[i] == '.') {
				i++
			}
			text := formula[start:i]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", text, start)
			}
			tokens = append(tokens, token{tokenNumber, text, start})
		case c >= 'A' && c <= 'Z':
			start := i
			for i < len(formula) && (formula[i] >= 'A' && formula[i] <= 'Z' ||
				formula[i] >= '0' && formula[i] <= '9' || formula[i] == '_') {
				i++
			}
			tokens = append(tokens, token{tokenIdent, formula[start:i], start})
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{tokenOp, string(c), i})
			i++
		case c == '(':
			tokens = append(tokens, token{tokenLeft, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokenRight, ")", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokenComma, ",", i})
			i++
		default:
			return nil, fmt.Errorf("invalid character %q at position %d", string(c), i)
		}
	}
	tokens = append(tokens, token{tokenEOF, "", len(formula)})
	return tokens, nil
}

// parser is a recursive-descent parser over the lexed tokens.
//
// Grammar:
//
//	expr    := term (('+'|'-') term)*
//	term    := unary (('*'|'/') unary)*
//	unary   := '-' unary | primary
//	primary := NUMBER | IDENT | IDENT '(' expr (',' expr)* ')' | '(' expr ')'
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.next().text[0]
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOp && (p.peek().text == "*" || p.peek().text == "/") {
		op := p.next().text[0]
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokenOp && p.peek().text == "-" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokenNumber:
		value, _ := strconv.ParseFloat(t.text, 64)
		return numberNode(value), nil
	case tokenIdent:
		if p.peek().kind == tokenLeft {
			return p.parseCall(t.text)
		}
		if IsFunction(t.text) {
			return nil, fmt.Errorf("function %s used without arguments", t.text)
		}
		return variableNode(t.text), nil
	case tokenLeft:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokenRight {
			return nil, fmt.Errorf("unbalanced parentheses")
		}
		return inner, nil
	case tokenEOF:
		return nil, fmt.Errorf("unexpected end of formula")
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
}

func (p *parser) parseCall(name string) (node, error) {
	def, ok := functions[name]
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", name)
	}
	p.next() // consume '('
	var args []node
	if p.peek().kind != tokenRight {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if p.next().kind != tokenRight {
		return nil, fmt.Errorf("unbalanced parentheses in call to %s", name)
	}
	if len(args) != def.arity {
		return nil, fmt.Errorf("function %s expects %d arguments, got %d", name, def.arity, len(args))
	}
	return callNode{name: name, args: args}, nil
}

// parse lexes and parses a complete formula into an expression tree.
func parse(formula string) (node, error) {
	if strings.TrimSpace(formula) == "" {
		return nil, fmt.Errorf("formula is empty")
	}
	tokens, err := lex(formula)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		t := p.peek()
		if t.kind == tokenRight {
			return nil, fmt.Errorf("unbalanced parentheses")
		}
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	return root, nil
}
