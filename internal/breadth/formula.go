package breadth

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// FormulaVars are the named intermediate values a custom formula may reference.
// They are computed identically to the six_factor sub-scores.
type FormulaVars struct {
	Primary   float64
	Secondary float64
	Reference float64
	Sector    float64
	Momentum  float64
}

// Formula is a compiled custom-formula expression. Compilation happens once,
// at configuration-validation time; evaluation never interprets source text.
type Formula struct {
	src  string
	root formulaNode
}

// Source returns the original expression text
func (f *Formula) Source() string { return f.src }

// Eval evaluates the compiled expression. Division by zero yields zero,
// mirroring the engine's defined-neutral ratio semantics; non-finite
// intermediate values collapse to zero as well.
func (f *Formula) Eval(vars FormulaVars) float64 {
	v := f.root.eval(vars)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Formula returns the compiled custom formula for a custom-algorithm
// configuration, compiling and caching it on first use. Configurations that
// went through store validation arrive pre-compiled.
func (c *Config) Formula() (*Formula, error) {
	if c.Algorithm != AlgorithmCustom {
		return nil, &ValidationError{Field: "algorithm", Message: "configuration has no custom formula", Value: c.Algorithm}
	}
	if c.compiled == nil {
		f, err := CompileFormula(c.CustomFormula)
		if err != nil {
			return nil, err
		}
		c.compiled = f
	}
	return c.compiled, nil
}

// ResetCompiledFormula drops the cached compiled formula so the next
// validation recompiles the current source. The store calls this when a
// correction changes the formula text.
func (c *Config) ResetCompiledFormula() { c.compiled = nil }

// CompileFormula parses src against the restricted grammar
//
//	expr   := term (('+' | '-') term)*
//	term   := factor (('*' | '/') factor)*
//	factor := number | ident | '-' factor | '(' expr ')'
//
// where ident is one of primary, secondary, reference, sector, momentum.
// Any other token is rejected before the configuration is ever persisted.
func CompileFormula(src string) (*Formula, error) {
	tokens, err := tokenizeFormula(src)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &ValidationError{Field: "custom_formula", Message: "formula is empty"}
	}

	p := &formulaParser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, &ValidationError{
			Field:   "custom_formula",
			Message: fmt.Sprintf("unexpected token %q after expression", p.tokens[p.pos].text),
			Value:   src,
		}
	}
	return &Formula{src: src, root: root}, nil
}

var formulaIdents = map[string]func(FormulaVars) float64{
	"primary":   func(v FormulaVars) float64 { return v.Primary },
	"secondary": func(v FormulaVars) float64 { return v.Secondary },
	"reference": func(v FormulaVars) float64 { return v.Reference },
	"sector":    func(v FormulaVars) float64 { return v.Sector },
	"momentum":  func(v FormulaVars) float64 { return v.Momentum },
}

type formulaToken struct {
	kind string // "num", "ident", "op", "lparen", "rparen"
	text string
	num  float64
}

func tokenizeFormula(src string) ([]formulaToken, error) {
	var tokens []formulaToken
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, formulaToken{kind: "lparen", text: "("})
			i++
		case r == ')':
			tokens = append(tokens, formulaToken{kind: "rparen", text: ")"})
			i++
		case r == '+' || r == '-' || r == '*' || r == '/':
			tokens = append(tokens, formulaToken{kind: "op", text: string(r)})
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			text := string(runes[i:j])
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &ValidationError{Field: "custom_formula", Message: fmt.Sprintf("invalid numeric literal %q", text), Value: src}
			}
			tokens = append(tokens, formulaToken{kind: "num", text: text, num: num})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			name := strings.ToLower(string(runes[i:j]))
			if _, ok := formulaIdents[name]; !ok {
				return nil, &ValidationError{Field: "custom_formula", Message: fmt.Sprintf("unknown identifier %q", name), Value: src}
			}
			tokens = append(tokens, formulaToken{kind: "ident", text: name})
			i = j
		default:
			return nil, &ValidationError{Field: "custom_formula", Message: fmt.Sprintf("disallowed character %q", string(r)), Value: src}
		}
	}
	return tokens, nil
}

type formulaNode interface {
	eval(FormulaVars) float64
}

type numNode float64

func (n numNode) eval(FormulaVars) float64 { return float64(n) }

type identNode struct{ get func(FormulaVars) float64 }

func (n identNode) eval(v FormulaVars) float64 { return n.get(v) }

type negNode struct{ child formulaNode }

func (n negNode) eval(v FormulaVars) float64 { return -n.child.eval(v) }

type binNode struct {
	op          rune
	left, right formulaNode
}

func (n binNode) eval(v FormulaVars) float64 {
	l, r := n.left.eval(v), n.right.eval(v)
	switch n.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	default:
		if r == 0 {
			return 0
		}
		return l / r
	}
}

type formulaParser struct {
	tokens []formulaToken
	pos    int
}

func (p *formulaParser) peek() (formulaToken, bool) {
	if p.pos >= len(p.tokens) {
		return formulaToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *formulaParser) parseExpr() (formulaNode, error) {
	node, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != "op" || (tok.text != "+" && tok.text != "-") {
			return node, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		node = binNode{op: rune(tok.text[0]), left: node, right: right}
	}
}

func (p *formulaParser) parseTerm() (formulaNode, error) {
	node, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != "op" || (tok.text != "*" && tok.text != "/") {
			return node, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		node = binNode{op: rune(tok.text[0]), left: node, right: right}
	}
}

func (p *formulaParser) parseFactor() (formulaNode, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, &ValidationError{Field: "custom_formula", Message: "unexpected end of expression"}
	}
	switch {
	case tok.kind == "num":
		p.pos++
		return numNode(tok.num), nil
	case tok.kind == "ident":
		p.pos++
		return identNode{get: formulaIdents[tok.text]}, nil
	case tok.kind == "op" && tok.text == "-":
		p.pos++
		child, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return negNode{child: child}, nil
	case tok.kind == "lparen":
		p.pos++
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		next, ok := p.peek()
		if !ok || next.kind != "rparen" {
			return nil, &ValidationError{Field: "custom_formula", Message: "missing closing parenthesis"}
		}
		p.pos++
		return node, nil
	default:
		return nil, &ValidationError{Field: "custom_formula", Message: fmt.Sprintf("unexpected token %q", tok.text)}
	}
}
