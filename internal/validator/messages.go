package validator

import (
	"strconv"
	"strings"
)

var defaultMessages = map[Kind]string{
	KindRequired:  "The :field field is required.",
	KindEmail:     "The :field must be a valid email address.",
	KindNumeric:   "The :field must be a number.",
	KindInteger:   "The :field must be an integer.",
	KindMin:       "The :field must be at least :min characters.",
	KindMax:       "The :field may not be greater than :max characters.",
	KindBetween:   "The :field must be between :min and :max.",
	KindAlphaNum:  "The :field may only contain letters and numbers.",
	KindIn:        "The selected :field is invalid.",
	KindConfirmed: "The :field confirmation does not match.",
	KindDate:      "The :field is not a valid date.",
}

// message renders the override for field.rule when one exists, otherwise
// the default template.
func (v *Validator) message(field string, r Rule) string {
	tmpl, ok := v.messages[field+"."+string(r.Kind)]
	if !ok {
		tmpl = defaultMessages[r.Kind]
	}

	pairs := []string{":field", strings.ReplaceAll(field, "_", " ")}
	switch r.Kind {
	case KindMin:
		pairs = append(pairs, ":min", strconv.Itoa(r.N))
	case KindMax:
		pairs = append(pairs, ":max", strconv.Itoa(r.N))
	case KindBetween:
		pairs = append(pairs, ":min", formatBound(r.Lo), ":max", formatBound(r.Hi))
	case KindIn:
		pairs = append(pairs, ":values", strings.Join(r.Options, ", "))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
