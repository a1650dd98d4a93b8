// Package parser turns a boolean query such as `a && (b || !c)` into a tree.
//
// The grammar is right-recursive and gives && and || the same precedence,
// so `a && b || c` reads as `a && (b || c)`:
//
//	Expression    ::= SubExpression [ ('&&' | '||') Expression ]
//	SubExpression ::= '(' Expression ')' | '!' SubExpression | Term
package parser

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

type Node interface {
	String() string
}

type Term struct {
	Text string
	Pos  int
}

type And struct {
	Left, Right Node
}

type Or struct {
	Left, Right Node
}

type Not struct {
	Child Node
}

func (t Term) String() string { return t.Text }
func (a And) String() string  { return fmt.Sprintf("(%s && %s)", a.Left, a.Right) }
func (o Or) String() string   { return fmt.Sprintf("(%s || %s)", o.Left, o.Right) }
func (n Not) String() string  { return fmt.Sprintf("!(%s)", n.Child) }

// Terms lists the leaves of n from left to right.
func Terms(n Node) []string {
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Term:
			out = append(out, v.Text)
		case And:
			walk(v.Left)
			walk(v.Right)
		case Or:
			walk(v.Left)
			walk(v.Right)
		case Not:
			walk(v.Child)
		}
	}
	walk(n)
	return out
}

type kind int

const (
	tokTerm kind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

var singles = map[rune]kind{'!': tokNot, '(': tokLParen, ')': tokRParen}

type token struct {
	kind kind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokTerm {
		return fmt.Sprintf("term %q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

// tokenize splits expr into operators, parentheses and terms. Whitespace
// separates terms. A doubled & or | is an operator; a single one stays
// part of the surrounding term.
func tokenize(expr string) []token {
	var tokens []token
	var cur strings.Builder
	start := 0
	runes := []rune(expr)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, token{kind: tokTerm, text: cur.String(), pos: start})
			cur.Reset()
		}
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == '!' || r == '(' || r == ')':
			flush()
			tokens = append(tokens, token{kind: singles[r], text: string(r), pos: i})
		case (r == '&' || r == '|') && i+1 < len(runes) && runes[i+1] == r:
			flush()
			k := tokAnd
			if r == '|' {
				k = tokOr
			}
			tokens = append(tokens, token{kind: k, text: string([]rune{r, r}), pos: i})
			i++
		default:
			if cur.Len() == 0 {
				start = i
			}
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

type parser struct {
	tokens []token
	pos    int
	end    int
}

// Parse returns the tree for expr or an ErrParse naming the offending
// position. Positions count runes from 0.
func Parse(expr string) (Node, error) {
	p := &parser{tokens: tokenize(expr), end: len([]rune(expr))}
	if len(p.tokens) == 0 {
		return nil, apperrors.Parsef("empty expression")
	}
	n, err := p.expression()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, apperrors.Parsef("unexpected %s at position %d", tok, tok.pos)
	}
	return n, nil
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) expression() (Node, error) {
	left, err := p.subExpression()
	if err != nil {
		return nil, err
	}
	tok, ok := p.peek()
	if !ok || tok.kind == tokRParen {
		return left, nil
	}
	switch tok.kind {
	case tokAnd, tokOr:
		p.pos++
		right, err := p.expression()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokAnd {
			return And{Left: left, Right: right}, nil
		}
		return Or{Left: left, Right: right}, nil
	default:
		return nil, apperrors.Parsef("expected '&&', '||' or end of input at position %d, got %s", tok.pos, tok)
	}
}

func (p *parser) subExpression() (Node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, apperrors.Parsef("unexpected end of input at position %d", p.end)
	}
	p.pos++
	switch tok.kind {
	case tokLParen:
		n, err := p.expression()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok {
			return nil, apperrors.Parsef("expected ')' at position %d to close '(' at %d", p.end, tok.pos)
		}
		if closing.kind != tokRParen {
			return nil, apperrors.Parsef("expected ')' at position %d, got %s", closing.pos, closing)
		}
		p.pos++
		return n, nil
	case tokNot:
		child, err := p.subExpression()
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil
	case tokTerm:
		return Term{Text: tok.text, Pos: tok.pos}, nil
	default:
		return nil, apperrors.Parsef("expected a term, '(' or '!' at position %d, got %s", tok.pos, tok)
	}
}
