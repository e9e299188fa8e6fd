package validator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind names a rule.
type Kind string

const (
	KindRequired  Kind = "required"
	KindNullable  Kind = "nullable"
	KindEmail     Kind = "email"
	KindNumeric   Kind = "numeric"
	KindInteger   Kind = "integer"
	KindMin       Kind = "min"
	KindMax       Kind = "max"
	KindBetween   Kind = "between"
	KindAlphaNum  Kind = "alpha_num"
	KindIn        Kind = "in"
	KindConfirmed Kind = "confirmed"
	KindDate      Kind = "date"
)

// Rule is one parsed rule token. Only the parameter fields relevant to
// Kind are set.
type Rule struct {
	Kind Kind

	// N is the length bound for min and max.
	N int
	// Lo and Hi are the inclusive bounds for between.
	Lo, Hi float64
	// Options are the accepted values for in.
	Options []string
}

// FieldRules is the ordered rule chain of one field.
type FieldRules struct {
	Field string
	Rules []Rule
}

// Has reports whether the chain contains a rule of kind k.
func (f FieldRules) Has(k Kind) bool {
	for _, r := range f.Rules {
		if r.Kind == k {
			return true
		}
	}
	return false
}

// RuleSet is a parsed rule specification, ordered by field name.
type RuleSet []FieldRules

// ParseError reports a malformed rule token.
type ParseError struct {
	Field  string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("validator: field %q rule %q: %s", e.Field, e.Token, e.Reason)
}

// Parse turns field => "rule1|rule2:arg1,arg2" specifications into a RuleSet.
// Empty tokens, as left by a trailing pipe, are ignored.
func Parse(spec map[string]string) (RuleSet, error) {
	fields := make([]string, 0, len(spec))
	for f := range spec {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	rs := make(RuleSet, 0, len(fields))
	for _, field := range fields {
		fr := FieldRules{Field: field}
		for _, token := range strings.Split(spec[field], "|") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			r, err := parseRule(token)
			if err != nil {
				return nil, &ParseError{Field: field, Token: token, Reason: err.Error()}
			}
			fr.Rules = append(fr.Rules, r)
		}
		rs = append(rs, fr)
	}
	return rs, nil
}

// MustParse is Parse for specifications known at compile time.
func MustParse(spec map[string]string) RuleSet {
	rs, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return rs
}

func parseRule(token string) (Rule, error) {
	name, argList, hasArgs := strings.Cut(token, ":")
	var args []string
	if hasArgs {
		for _, a := range strings.Split(argList, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}

	r := Rule{Kind: Kind(strings.TrimSpace(name))}
	switch r.Kind {
	case KindRequired, KindNullable, KindEmail, KindNumeric, KindInteger,
		KindAlphaNum, KindConfirmed, KindDate:
		if hasArgs {
			return Rule{}, fmt.Errorf("takes no arguments")
		}
	case KindMin, KindMax:
		if len(args) != 1 {
			return Rule{}, fmt.Errorf("expects one argument")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return Rule{}, fmt.Errorf("argument must be a non-negative integer")
		}
		r.N = n
	case KindBetween:
		if len(args) != 2 {
			return Rule{}, fmt.Errorf("expects two arguments")
		}
		lo, errLo := strconv.ParseFloat(args[0], 64)
		hi, errHi := strconv.ParseFloat(args[1], 64)
		if errLo != nil || errHi != nil {
			return Rule{}, fmt.Errorf("arguments must be numbers")
		}
		if lo > hi {
			return Rule{}, fmt.Errorf("lower bound exceeds upper bound")
		}
		r.Lo, r.Hi = lo, hi
	case KindIn:
		if len(args) == 0 || args[0] == "" {
			return Rule{}, fmt.Errorf("expects at least one option")
		}
		r.Options = args
	default:
		return Rule{}, fmt.Errorf("unknown rule")
	}
	return r, nil
}
