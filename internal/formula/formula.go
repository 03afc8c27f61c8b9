// Package formula parses and evaluates the restricted arithmetic expression
// language used for deal-economics formulas: uppercase variable codes,
// numeric literals, + - * /, parentheses, and the fixed function set
// MIN, MAX, ABS, ROUND, CEIL, FLOOR, SQRT, POW.
//
// Formulas are short algebraic expressions entered by administrators, e.g.
//
//	GC * (PMSP/ISP)
//	(GC * (1 - SFR)) * (PMSP/ISP)
//
// The grammar is deliberately closed: no control flow, no string operations,
// no user-defined functions. Expressions are parsed into an explicit tree
// and evaluated directly, so nothing outside pure arithmetic can execute.
package formula

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`[A-Z][A-Z0-9_]*`)

// Validate checks a formula syntactically without evaluating it:
// parentheses must balance, and every identifier followed by '(' must be a
// built-in function. Any uppercase identifier not used as a function call is
// accepted as a variable reference. Returns nil when the formula is valid.
func Validate(form string) error {
	if strings.TrimSpace(form) == "" {
		return fmt.Errorf("formula is empty")
	}

	depth := 0
	for _, c := range form {
		if c == '(' {
			depth++
		}
		if c == ')' {
			depth--
		}
		if depth < 0 {
			return fmt.Errorf("unbalanced parentheses")
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced parentheses")
	}

	for _, loc := range identPattern.FindAllStringIndex(form, -1) {
		name := form[loc[0]:loc[1]]
		if followedByParen(form, loc[1]) && !IsFunction(name) {
			return fmt.Errorf("unknown function: %s", name)
		}
	}

	if _, err := parse(form); err != nil {
		return err
	}
	return nil
}

// ExtractVariables returns the unique variable codes referenced by a
// formula, in order of first appearance. Function names are excluded.
func ExtractVariables(form string) []string {
	var codes []string
	seen := make(map[string]bool)
	for _, loc := range identPattern.FindAllStringIndex(form, -1) {
		name := form[loc[0]:loc[1]]
		if IsFunction(name) || followedByParen(form, loc[1]) || seen[name] {
			continue
		}
		seen[name] = true
		codes = append(codes, name)
	}
	return codes
}

// Eval substitutes the given variable values into a formula and evaluates
// it. Variable tokens match whole identifiers only, so a formula holding
// both MFR and MFR1 resolves each independently. Fails if the formula
// references a variable absent from vars, contains anything outside the
// closed grammar, or does not evaluate to a finite number.
func Eval(form string, vars map[string]float64) (float64, error) {
	root, err := parse(form)
	if err != nil {
		return 0, fmt.Errorf("formula execution failed: %w (formula: %s)", err, form)
	}
	result, err := root.eval(vars)
	if err != nil {
		return 0, fmt.Errorf("formula execution failed: %w (formula: %s)", err, form)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("formula execution failed: result is not a finite number (formula: %s)", form)
	}
	return result, nil
}

// EvalAll evaluates a set of named formulas against one variable
// environment. Empty formula strings are skipped. Fails on the first
// formula that does not evaluate.
func EvalAll(forms map[string]string, vars map[string]float64) (map[string]float64, error) {
	results := make(map[string]float64, len(forms))
	for name, form := range forms {
		if form == "" {
			continue
		}
		value, err := Eval(form, vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		results[name] = value
	}
	return results, nil
}

// followedByParen reports whether the next non-space character at or after
// pos is an opening parenthesis.
func followedByParen(s string, pos int) bool {
	for i := pos; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t':
			continue
		case '(':
			return true
		default:
			return false
		}
	}
	return false
}
