package formula_test

import (
	"math"
	"strings"
	"testing"

	"github.com/equinoxcap/investor-portal-backend/internal/formula"
)

// TestValidate tests syntactic validation of formula strings.
//
// WHY: Templates are only persisted after every formula passes validation,
// so validation must accept the full deal-economics grammar and reject
// anything outside it with a usable message.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		wantErr string // empty means valid
	}{
		{"simple product", "GC * (PMSP/ISP)", ""},
		{"nested with literal", "(GC * (1 - SFR)) * (PMSP/ISP)", ""},
		{"function call", "MAX(GC - NC, 0)", ""},
		{"nested functions", "ROUND(MIN(GC, MAX(NC, 0)) / IUP)", ""},
		{"unary minus", "-GC + 100", ""},
		{"empty", "   ", "formula is empty"},
		{"unbalanced open", "(GC * NC", "unbalanced parentheses"},
		{"unbalanced close", "GC * NC)", "unbalanced parentheses"},
		{"early close", ")GC(", "unbalanced parentheses"},
		{"unknown function", "MEDIAN(GC, NC)", "unknown function: MEDIAN"},
		{"invalid character", "GC % NC", "invalid character"},
		{"lowercase identifier", "gc * 2", "invalid character"},
		{"dangling operator", "GC *", "unexpected end of formula"},
		{"wrong arity", "MIN(GC)", "expects 2 arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := formula.Validate(tt.formula)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate(%q) returned unexpected error: %v", tt.formula, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate(%q) expected error containing %q, got nil", tt.formula, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate(%q) error = %q, want it to contain %q", tt.formula, err, tt.wantErr)
			}
		})
	}
}

// TestExtractVariables tests variable discovery.
//
// WHY: The admin UI and the round-trip property depend on ExtractVariables
// returning exactly the codes Eval needs: supplying all of them must make
// evaluation succeed, and omitting any one must make it fail.
func TestExtractVariables(t *testing.T) {
	t.Run("excludes function names", func(t *testing.T) {
		vars := formula.ExtractVariables("MAX(GC - NC, 0) + ROUND(SFR * GC)")
		want := []string{"GC", "NC", "SFR"}
		if len(vars) != len(want) {
			t.Fatalf("Expected %v, got %v", want, vars)
		}
		for i, code := range want {
			if vars[i] != code {
				t.Errorf("Expected %v, got %v", want, vars)
			}
		}
	})

	t.Run("deduplicates in order of first appearance", func(t *testing.T) {
		vars := formula.ExtractVariables("GC + NC + GC + NC")
		if len(vars) != 2 || vars[0] != "GC" || vars[1] != "NC" {
			t.Errorf("Expected [GC NC], got %v", vars)
		}
	})

	t.Run("round trip with Eval", func(t *testing.T) {
		form := "(GC * (1 - SFR)) * (PMSP/ISP) + MIN(NC, GC)"
		codes := formula.ExtractVariables(form)

		env := make(map[string]float64)
		for _, code := range codes {
			env[code] = 2.0
		}
		if _, err := formula.Eval(form, env); err != nil {
			t.Fatalf("Eval with all extracted variables failed: %v", err)
		}

		// Omitting any single variable must fail with an unreplaced-variable error.
		for _, omit := range codes {
			partial := make(map[string]float64)
			for _, code := range codes {
				if code != omit {
					partial[code] = 2.0
				}
			}
			_, err := formula.Eval(form, partial)
			if err == nil {
				t.Errorf("Eval without %s succeeded, expected unreplaced-variable error", omit)
			} else if !strings.Contains(err.Error(), "unreplaced variable: "+omit) {
				t.Errorf("Eval without %s: error = %v, want unreplaced variable", omit, err)
			}
		}
	})
}

// TestEval tests formula evaluation.
//
// WHY: Deal economics are computed from these results; precedence,
// function semantics, and the finite-number contract must hold exactly.
func TestEval(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		vars    map[string]float64
		want    float64
	}{
		{"precedence", "2 + 3 * 4", nil, 14},
		{"parentheses", "(2 + 3) * 4", nil, 20},
		{"division chain", "100 / 5 / 2", nil, 10},
		{"unary minus", "-GC + 10", map[string]float64{"GC": 4}, 6},
		{"net capital", "GC * (1 - SFR)", map[string]float64{"GC": 500000, "SFR": 0.015}, 492500},
		{"proceeds ratio", "NC * (EUP / IUP)", map[string]float64{"NC": 480000, "EUP": 1.5, "IUP": 1.0}, 720000},
		{"min", "MIN(GC, NC)", map[string]float64{"GC": 100, "NC": 80}, 80},
		{"max", "MAX(GC - NC, 0)", map[string]float64{"GC": 80, "NC": 100}, 0},
		{"abs", "ABS(NC - GC)", map[string]float64{"GC": 100, "NC": 80}, 20},
		{"round", "ROUND(GC * 0.333)", map[string]float64{"GC": 10}, 3},
		{"ceil", "CEIL(GC / 3)", map[string]float64{"GC": 10}, 4},
		{"floor", "FLOOR(GC / 3)", map[string]float64{"GC": 10}, 3},
		{"sqrt", "SQRT(GC)", map[string]float64{"GC": 144}, 12},
		{"pow", "POW(M, 1 / T) - 1", map[string]float64{"M": 4, "T": 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formula.Eval(tt.formula, tt.vars)
			if err != nil {
				t.Fatalf("Eval(%q) returned unexpected error: %v", tt.formula, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Eval(%q) = %v, want %v", tt.formula, got, tt.want)
			}
		})
	}

	t.Run("longest token substitution", func(t *testing.T) {
		// MFR1 must resolve independently of MFR, never as MFR with a stray 1.
		got, err := formula.Eval("MFR1 + MFR", map[string]float64{"MFR": 2, "MFR1": 30})
		if err != nil {
			t.Fatalf("Eval returned unexpected error: %v", err)
		}
		if got != 32 {
			t.Errorf("Expected 32, got %v", got)
		}
	})

	t.Run("division by zero is not finite", func(t *testing.T) {
		_, err := formula.Eval("GC / ISP", map[string]float64{"GC": 100, "ISP": 0})
		if err == nil {
			t.Fatal("Expected non-finite error, got nil")
		}
		if !strings.Contains(err.Error(), "finite") {
			t.Errorf("Expected finite-number error, got %v", err)
		}
	})

	t.Run("error carries formula text", func(t *testing.T) {
		_, err := formula.Eval("GC + NC", map[string]float64{"GC": 1})
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if !strings.Contains(err.Error(), "GC + NC") {
			t.Errorf("Expected error to carry formula text, got %v", err)
		}
	})
}

// TestEvalAll tests multi-formula evaluation against one environment.
func TestEvalAll(t *testing.T) {
	t.Run("evaluates each named formula", func(t *testing.T) {
		results, err := formula.EvalAll(map[string]string{
			"nc":       "GC * 0.96",
			"proceeds": "GC * 1.5",
			"skipped":  "",
		}, map[string]float64{"GC": 1000})
		if err != nil {
			t.Fatalf("EvalAll returned unexpected error: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(results))
		}
		if results["nc"] != 960 || results["proceeds"] != 1500 {
			t.Errorf("Unexpected results: %v", results)
		}
	})

	t.Run("names the failing formula", func(t *testing.T) {
		_, err := formula.EvalAll(map[string]string{"bad": "GC +"}, map[string]float64{"GC": 1})
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if !strings.Contains(err.Error(), "bad:") {
			t.Errorf("Expected error to name the formula, got %v", err)
		}
	})
}
