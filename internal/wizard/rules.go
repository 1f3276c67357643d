package wizard

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/pkg/utils"
)

// DateLayout is the accepted calendar date format
const DateLayout = "2006-01-02"

// isBlank treats missing, null, whitespace-only strings and empty
// arrays/objects as empty
func isBlank(v gjson.Result) bool {
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return true
	case v.Type == gjson.String:
		return strings.TrimSpace(v.Str) == ""
	case v.IsArray(), v.IsObject():
		empty := true
		v.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return empty
	}
	return false
}

func text(v gjson.Result) string {
	return strings.TrimSpace(v.String())
}

// Required fails when field is blank
func Required(field, message string) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		if isBlank(r.Get(field)) {
			errs.Add(field, message)
		}
	})
}

// MinLength fails when a non-blank field has fewer than n characters after trimming
func MinLength(field string, n int, message string) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		v := r.Get(field)
		if isBlank(v) {
			return
		}
		if utils.CharCount(v.String()) < n {
			errs.Add(field, message)
		}
	})
}

// Pattern fails when a non-blank field does not match re
func Pattern(field string, re *regexp.Regexp, message string) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		v := r.Get(field)
		if isBlank(v) {
			return
		}
		if !re.MatchString(text(v)) {
			errs.Add(field, message)
		}
	})
}

// OneOf fails when a non-blank field is not one of options
func OneOf(field string, options []string, message string) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		v := r.Get(field)
		if isBlank(v) {
			return
		}
		value := text(v)
		for _, o := range options {
			if o == value {
				return
			}
		}
		errs.Add(field, message)
	})
}

// PositiveDecimal fails when a non-blank field is not a number greater than zero
func PositiveDecimal(field, message string) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		v := r.Get(field)
		if isBlank(v) {
			return
		}
		if v.Type != gjson.Number && v.Type != gjson.String {
			errs.Add(field, message)
			return
		}
		d, err := decimal.NewFromString(text(v))
		if err != nil || !d.IsPositive() {
			errs.Add(field, message)
		}
	})
}

// Date fails when a non-blank field is not a YYYY-MM-DD calendar date
func Date(field, message string) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		v := r.Get(field)
		if isBlank(v) {
			return
		}
		if _, err := time.Parse(DateLayout, text(v)); err != nil {
			errs.Add(field, message)
		}
	})
}

// AtLeastOne fails when the array at field has no non-blank element
func AtLeastOne(field, message string) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		found := false
		v := r.Get(field)
		if v.IsArray() {
			v.ForEach(func(_, item gjson.Result) bool {
				if !isBlank(item) {
					found = true
					return false
				}
				return true
			})
		}
		if !found {
			errs.Add(field, message)
		}
	})
}

// Checked fails unless field is boolean true
func Checked(field, message string) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		if r.Get(field).Type != gjson.True {
			errs.Add(field, message)
		}
	})
}

// RequiredDocument names a document slot that must be present in an upload list
type RequiredDocument struct {
	ID      string
	Message string
}

// HasDocuments fails once per required document id that has no entry in the
// list at field, or whose only entries failed to upload. Errors are keyed
// "<field>.<id>".
func HasDocuments(field string, docs ...RequiredDocument) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		present := map[string]bool{}
		r.Get(field).ForEach(func(_, item gjson.Result) bool {
			if item.Get("uploadState").String() != entity.UploadStateFailed {
				present[item.Get("id").String()] = true
			}
			return true
		})
		for _, d := range docs {
			if !present[d.ID] {
				errs.Add(field+"."+d.ID, d.Message)
			}
		}
	})
}

// InRoster fails when a non-blank manager email is not listed in the roster
// of the department held at departmentField
func InRoster(departmentField, emailField string, roster *entity.Roster, message string) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		email := r.Get(emailField)
		if isBlank(email) {
			return
		}
		if _, ok := roster.Find(text(r.Get(departmentField)), text(email)); !ok {
			errs.Add(emailField, message)
		}
	})
}

// When applies rules only while cond holds
func When(cond func(Record) bool, rules ...Rule) Rule {
	return RuleFunc(func(r Record, errs ErrorMap) {
		if !cond(r) {
			return
		}
		for _, rule := range rules {
			rule.Apply(r, errs)
		}
	})
}
