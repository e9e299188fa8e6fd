// Package validator checks form input against declarative rule chains such
// as "required|min:5|max:20". A specification is parsed once into a RuleSet
// and every rule of every field is evaluated, so callers get all failures.
//
// A Validator keeps the errors of its last run and is not safe for
// concurrent use; create one per request.
package validator

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	playground "github.com/go-playground/validator/v10"
)

var (
	tags = playground.New()

	numericRe  = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	integerRe  = regexp.MustCompile(`^[+-]?\d+$`)
	alphaNumRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

const dateLayout = "2006-01-02"

type Validator struct {
	messages map[string]string
	errors   map[string][]string
}

type Option func(*Validator)

// WithMessages sets message overrides keyed by "field.rule". Templates may
// use :field, :min, :max and :values.
func WithMessages(m map[string]string) Option {
	return func(v *Validator) {
		maps.Copy(v.messages, m)
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{
		messages: map[string]string{},
		errors:   map[string][]string{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate parses rules and checks data against them. The error is non-nil
// only for a malformed specification.
func (v *Validator) Validate(data map[string]any, rules map[string]string) (bool, error) {
	rs, err := Parse(rules)
	if err != nil {
		return false, err
	}
	return v.Check(data, rs), nil
}

// Check evaluates a parsed RuleSet. A missing field reads as "" for every
// rule except required.
func (v *Validator) Check(data map[string]any, rs RuleSet) bool {
	v.errors = map[string][]string{}

	for _, fr := range rs {
		raw, present := data[fr.Field]
		value := stringify(raw)

		if fr.Has(KindNullable) && strings.TrimSpace(value) == "" {
			if fr.Has(KindRequired) {
				v.fail(fr.Field, Rule{Kind: KindRequired})
			}
			continue
		}

		for _, r := range fr.Rules {
			var ok bool
			if r.Kind == KindRequired {
				ok = present && raw != nil && strings.TrimSpace(value) != ""
			} else {
				ok = passes(r, fr.Field, raw, value, data)
			}
			if !ok {
				v.fail(fr.Field, r)
			}
		}
	}
	return len(v.errors) == 0
}

// Errors returns the messages of the last run per field, in rule order.
func (v *Validator) Errors() map[string][]string {
	out := make(map[string][]string, len(v.errors))
	for f, msgs := range v.errors {
		out[f] = append([]string(nil), msgs...)
	}
	return out
}

// FirstError returns the first message recorded for field, or "".
func (v *Validator) FirstError(field string) string {
	if msgs := v.errors[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Err returns the last run's failures as a *common.ValidationError, or nil.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &common.ValidationError{Fields: v.Errors()}
}

func (v *Validator) fail(field string, r Rule) {
	v.errors[field] = append(v.errors[field], v.message(field, r))
}

func passes(r Rule, field string, raw any, value string, data map[string]any) bool {
	switch r.Kind {
	case KindNullable:
		return true
	case KindEmail:
		return tags.Var(value, "required,email") == nil
	case KindNumeric:
		_, ok := toNumber(raw, value)
		return ok
	case KindInteger:
		return isInteger(raw, value)
	case KindMin:
		return utf8.RuneCountInString(value) >= r.N
	case KindMax:
		return utf8.RuneCountInString(value) <= r.N
	case KindBetween:
		n, ok := toNumber(raw, value)
		return ok && n >= r.Lo && n <= r.Hi
	case KindAlphaNum:
		return alphaNumRe.MatchString(value)
	case KindIn:
		for _, o := range r.Options {
			if value == o {
				return true
			}
		}
		return false
	case KindConfirmed:
		other, ok := data[field+"_confirmation"]
		return ok && stringify(other) == value
	case KindDate:
		_, err := time.Parse(dateLayout, value)
		return err == nil
	}
	return false
}

// toNumber accepts Go numeric kinds and numeric strings; NaN and infinities
// are rejected.
func toNumber(raw any, value string) (float64, bool) {
	var n float64
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n = float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		n = rv.Float()
	default:
		s := strings.TrimSpace(value)
		if !numericRe.MatchString(s) {
			return 0, false
		}
		var err error
		if n, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func isInteger(raw any, value string) bool {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	}
	return integerRe.MatchString(strings.TrimSpace(value))
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}
