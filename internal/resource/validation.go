package resource

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/paroquia-cms/paroquia-cms/internal/platform/validate"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Input is the write payload of create and update. Raw carries client JSON
// and is restricted to writable fields; Trusted carries values computed by
// the caller's service layer (such as a password hash) and bypasses that
// restriction.
type Input struct {
	Raw     map[string]json.RawMessage
	Trusted Record
}

// decodeInput coerces the client payload into typed values. Unknown,
// read-only and hidden fields are ignored.
func decodeInput(d *Descriptor, in Input) (Record, error) {
	values := Record{}
	var errs []shared.FieldError
	for _, f := range d.Fields {
		raw, ok := in.Raw[f.Name]
		if !ok || f.ReadOnly || f.Hidden {
			continue
		}
		v, err := coerceJSON(f, raw)
		if err != nil {
			errs = append(errs, shared.FieldError{Field: f.Name, Message: f.Name + " " + err.Error()})
			continue
		}
		values[f.Name] = v
	}
	if len(errs) > 0 {
		return nil, shared.NewValidationError(errs...)
	}
	for k, v := range in.Trusted {
		if _, ok := d.Field(k); ok {
			values[k] = v
		}
	}
	return values, nil
}

// validateRecord checks every field rule and then the descriptor's checks
// against the complete record.
func validateRecord(v *validator.Validate, d *Descriptor, rec Record) error {
	var errs []shared.FieldError
	for _, f := range d.Fields {
		if f.Rules == "" {
			continue
		}
		if msg, ok := checkField(v, f, rec[f.Name]); !ok {
			errs = append(errs, shared.FieldError{Field: f.Name, Message: msg})
		}
	}
	if len(errs) == 0 {
		for _, check := range d.Checks {
			if fe := check(rec); fe != nil {
				errs = append(errs, *fe)
			}
		}
	}
	if len(errs) > 0 {
		return shared.NewValidationError(errs...)
	}
	return nil
}

func checkField(v *validator.Validate, f Field, value any) (string, bool) {
	required := hasRule(f.Rules, "required") || (!f.Nullable && !hasRule(f.Rules, "omitempty"))
	if value == nil {
		if required {
			return validate.Message(f.Name, "required", ""), false
		}
		return "", true
	}
	if t, isTime := value.(time.Time); isTime {
		if required && t.IsZero() {
			return validate.Message(f.Name, "required", ""), false
		}
		return "", true
	}
	if err := v.Var(value, f.Rules); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return validate.Message(f.Name, verrs[0].Tag(), verrs[0].Param()), false
		}
		return f.Name + " is invalid", false
	}
	return "", true
}

func hasRule(rules, name string) bool {
	for _, r := range strings.Split(rules, ",") {
		if r == name {
			return true
		}
	}
	return false
}
