package tool

import (
	"fmt"
	"strconv"
	"strings"
)

// Evaluate computes an arithmetic expression with + - * / and parentheses.
func Evaluate(expression string) (float64, error) {
	p := &calcParser{input: strings.TrimSpace(expression)}
	if p.input == "" {
		return 0, fmt.Errorf("expression is empty")
	}
	value, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected token at position %d", p.pos)
	}
	return value, nil
}

type calcParser struct {
	input string
	pos   int
}

func (p *calcParser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.accept('+'):
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left += right
		case p.accept('-'):
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *calcParser) term() (float64, error) {
	left, err := p.factor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.accept('*'):
			right, err := p.factor()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.accept('/'):
			right, err := p.factor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *calcParser) factor() (float64, error) {
	p.skipSpaces()
	if p.accept('-') {
		v, err := p.factor()
		return -v, err
	}
	if p.accept('(') {
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if !p.accept(')') {
			return 0, fmt.Errorf("missing closing parenthesis at position %d", p.pos)
		}
		return v, nil
	}
	return p.number()
}

func (p *calcParser) number() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if (ch < '0' || ch > '9') && ch != '.' {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}

func (p *calcParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *calcParser) accept(ch byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == ch {
		p.pos++
		return true
	}
	return false
}
