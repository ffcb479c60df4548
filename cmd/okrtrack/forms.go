package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"okrtrack/internal/okr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("quarter", func(fl validator.FieldLevel) bool {
		_, err := okr.ParseQuarter(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("rootcause", func(fl validator.FieldLevel) bool {
		_, ok := okr.ParseRootCause(fl.Field().String())
		return ok
	})
	return v
}

// KeyResultForm is one --kr value: "text|target|baseline".
type KeyResultForm struct {
	Text     string `validate:"required"`
	Target   string `validate:"required"`
	Baseline string
}

type CreateOKRForm struct {
	Level             string `validate:"required,oneof=productArea domain team"`
	OwnerID           string `validate:"required"`
	Quarter           string `validate:"required,quarter"`
	Objective         string `validate:"required,max=500"`
	ParentOKRID       string
	KeyResults        []KeyResultForm `validate:"required,min=1,dive"`
	InitialConfidence float64         `validate:"gte=0,lte=100"`
}

func (f *CreateOKRForm) Normalize() {
	f.Level = strings.TrimSpace(f.Level)
	f.OwnerID = strings.TrimSpace(f.OwnerID)
	f.Quarter = strings.ToUpper(strings.TrimSpace(f.Quarter))
	f.Objective = strings.TrimSpace(f.Objective)
	f.ParentOKRID = strings.TrimSpace(f.ParentOKRID)
	for i := range f.KeyResults {
		f.KeyResults[i].Text = strings.TrimSpace(f.KeyResults[i].Text)
		f.KeyResults[i].Target = strings.TrimSpace(f.KeyResults[i].Target)
		f.KeyResults[i].Baseline = strings.TrimSpace(f.KeyResults[i].Baseline)
	}
}

func (f *CreateOKRForm) Ok() (map[string]string, bool) {
	f.Normalize()
	return check(f)
}

type CheckInForm struct {
	OKRID              string  `validate:"required"`
	Date               string  `validate:"omitempty,datetime=2006-01-02"`
	Cadence            string  `validate:"omitempty,oneof=weekly biweekly"`
	Progress           float64 `validate:"gte=0,lte=100"`
	Confidence         float64 `validate:"gte=0,lte=100"`
	ReasonForChange    string  `validate:"max=2000"`
	Note               string  `validate:"max=2000"`
	RootCause          string  `validate:"omitempty,rootcause"`
	RootCauseNote      string  `validate:"max=2000"`
	RecoveryLikelihood string  `validate:"omitempty,oneof=high medium low"`
}

func (f *CheckInForm) Normalize() {
	f.OKRID = strings.TrimSpace(f.OKRID)
	f.Date = strings.TrimSpace(f.Date)
	f.Cadence = strings.TrimSpace(f.Cadence)
	f.ReasonForChange = strings.TrimSpace(f.ReasonForChange)
	f.Note = strings.TrimSpace(f.Note)
	f.RootCause = strings.TrimSpace(f.RootCause)
	f.RootCauseNote = strings.TrimSpace(f.RootCauseNote)
	f.RecoveryLikelihood = strings.ToLower(strings.TrimSpace(f.RecoveryLikelihood))
}

func (f *CheckInForm) Ok() (map[string]string, bool) {
	f.Normalize()
	return check(f)
}

type CloseForm struct {
	OKRID       string  `validate:"required"`
	FinalValue  float64 `validate:"gte=0"`
	Achievement string  `validate:"required,oneof=achieved partially_achieved missed"`
	Summary     string  `validate:"required,max=2000"`
}

func (f *CloseForm) Normalize() {
	f.OKRID = strings.TrimSpace(f.OKRID)
	f.Achievement = strings.TrimSpace(f.Achievement)
	f.Summary = strings.TrimSpace(f.Summary)
}

func (f *CloseForm) Ok() (map[string]string, bool) {
	f.Normalize()
	return check(f)
}

type CadenceForm struct {
	TeamID  string `validate:"required"`
	Cadence string `validate:"required,oneof=weekly biweekly"`
}

func (f *CadenceForm) Ok() (map[string]string, bool) {
	f.TeamID = strings.TrimSpace(f.TeamID)
	f.Cadence = strings.TrimSpace(f.Cadence)
	return check(f)
}

func check(form any) (map[string]string, bool) {
	err := validate.Struct(form)
	if err == nil {
		return map[string]string{}, true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"": err.Error()}, false
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldName(fe.Namespace())] = message(fe)
	}
	return out, false
}

// fieldName drops the struct name from a validator namespace.
func fieldName(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		return "must be a date like 2025-07-14"
	case "quarter":
		return "must be a quarter like 2025-Q3"
	case "rootcause":
		return fmt.Sprintf("must be a known root cause (%s)", rootCauseNames())
	}
	return fmt.Sprintf("failed %s check", fe.Tag())
}

func rootCauseNames() string {
	names := make([]string, 0, len(okr.RootCauses))
	for _, rc := range okr.RootCauses {
		names = append(names, string(rc))
	}
	return strings.Join(names, ", ")
}

// formError turns field messages into one error, sorted by field.
func formError(command string, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("  %s: %s", k, fields[k]))
	}
	return errors.Errorf("%s %s: invalid input\n%s", appName, command, strings.Join(parts, "\n"))
}
