package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wbrown/janus-kgstore/kg/facts"
)

// ParseError describes a malformed query string.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return "query: " + e.Msg
}

func parseErrorf(format string, args ...interface{}) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// Parse parses a query of the form
//
//	SELECT ?x ?y WHERE ?x rdf:type <ex:Person> . ?x ex:knows ?y LIMIT 10 OFFSET 5
//
// WHERE clauses are triple patterns separated by ".". Keywords are
// case-insensitive; terms follow the TSV object grammar plus ?variables.
func Parse(text string) (*Query, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, parseErrorf("empty query")
	}
	pos := 0

	if !isKeyword(toks, pos, "SELECT") {
		return nil, parseErrorf("expected SELECT, got %q", toks[pos])
	}
	pos++

	q := &Query{}
	for pos < len(toks) && strings.HasPrefix(toks[pos], "?") {
		name := toks[pos][1:]
		if name == "" {
			return nil, parseErrorf("empty variable name")
		}
		q.Select = append(q.Select, name)
		pos++
	}
	if len(q.Select) == 0 {
		return nil, parseErrorf("SELECT needs at least one ?variable")
	}

	if !isKeyword(toks, pos, "WHERE") {
		return nil, parseErrorf("expected WHERE after SELECT variables")
	}
	pos++

	for pos < len(toks) && !isKeyword(toks, pos, "LIMIT") && !isKeyword(toks, pos, "OFFSET") {
		if toks[pos] == "." {
			pos++
			continue
		}
		if pos+3 > len(toks) {
			return nil, parseErrorf("incomplete pattern at %q", strings.Join(toks[pos:], " "))
		}
		pat, err := parsePattern(toks[pos], toks[pos+1], toks[pos+2])
		if err != nil {
			return nil, err
		}
		q.Where = append(q.Where, pat)
		pos += 3
	}
	if len(q.Where) == 0 {
		return nil, parseErrorf("WHERE needs at least one pattern")
	}

	for pos < len(toks) {
		switch {
		case isKeyword(toks, pos, "LIMIT"):
			n, err := parseClauseCount(toks, pos, "LIMIT")
			if err != nil {
				return nil, err
			}
			q.Limit, q.HasLimit = n, true
			pos += 2
		case isKeyword(toks, pos, "OFFSET"):
			n, err := parseClauseCount(toks, pos, "OFFSET")
			if err != nil {
				return nil, err
			}
			q.Offset, q.HasOffset = n, true
			pos += 2
		default:
			return nil, parseErrorf("unexpected token %q", toks[pos])
		}
	}

	bound := map[string]bool{}
	for _, p := range q.Where {
		for _, t := range []Term{p.Subject, p.Predicate, p.Object} {
			if t.IsVar() {
				bound[t.Var] = true
			}
		}
	}
	for _, v := range q.Select {
		if !bound[v] {
			return nil, parseErrorf("selected variable ?%s never appears in WHERE", v)
		}
	}
	return q, nil
}

func isKeyword(toks []string, pos int, kw string) bool {
	return pos < len(toks) && strings.EqualFold(toks[pos], kw)
}

func parseClauseCount(toks []string, pos int, kw string) (int, error) {
	if pos+1 >= len(toks) {
		return 0, parseErrorf("%s needs a count", kw)
	}
	n, err := strconv.Atoi(toks[pos+1])
	if err != nil || n < 0 {
		return 0, parseErrorf("bad %s count %q", kw, toks[pos+1])
	}
	return n, nil
}

func parsePattern(s, p, o string) (Pattern, error) {
	subject, err := parseNodeTerm(s)
	if err != nil {
		return Pattern{}, parseErrorf("subject: %v", err)
	}
	predicate, err := parseNodeTerm(p)
	if err != nil {
		return Pattern{}, parseErrorf("predicate: %v", err)
	}
	object, err := parseObjectTerm(o)
	if err != nil {
		return Pattern{}, parseErrorf("object: %v", err)
	}
	return Pattern{Subject: subject, Predicate: predicate, Object: object}, nil
}

func parseNodeTerm(tok string) (Term, error) {
	if strings.HasPrefix(tok, "?") {
		return Term{Var: tok[1:]}, nil
	}
	id, err := facts.ParseID(tok)
	if err != nil {
		return Term{}, err
	}
	return Term{ID: &id}, nil
}

func parseObjectTerm(tok string) (Term, error) {
	if strings.HasPrefix(tok, "?") {
		return Term{Var: tok[1:]}, nil
	}
	v, err := facts.ParseObject(tok)
	if err != nil {
		return Term{}, err
	}
	return Term{Value: &v}, nil
}

// tokenize splits on whitespace, keeping quoted string literals (and any
// @lang suffix) as one token.
func tokenize(text string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(text) {
		c := text[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}
		start := i
		if c == '"' {
			i++
			for i < len(text) && text[i] != '"' {
				if text[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(text) {
				return nil, parseErrorf("unterminated string literal")
			}
			i++ // closing quote
		}
		for i < len(text) && !isSpace(text[i]) {
			i++
		}
		toks = append(toks, text[start:i])
	}
	return toks, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
