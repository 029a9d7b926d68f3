package alert

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

// Draft is unvalidated alert input. Field order is the order in which
// constraints are reported.
type Draft struct {
	Type            Type   `json:"type" validate:"required,oneof=local mail messaging"`
	ContentTemplate string `json:"contentTemplate" validate:"required,contains=[fence]"`
	Recipient       string `json:"recipient" validate:"required,recipient"`
	ChannelID       string `json:"channelId" validate:"required_unless=Type local"`
	Subject         string `json:"subject" validate:"required_unless=Type local"`
	Name            string `json:"name" validate:"required"`
}

var messages = map[string]string{
	"required":        "is required",
	"required_unless": "is required for mail and messaging alerts",
	"oneof":           "must be one of local, mail, messaging",
	"contains":        "must contain the " + Placeholder + " placeholder",
	"recipient":       "must be a language code such as en or es-MX",
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func draftValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("recipient", validRecipient)
		validate = v
	})
	return validate
}

// validRecipient requires a BCP 47 tag for local alerts. Other types only
// need the required check.
func validRecipient(fl validator.FieldLevel) bool {
	typ := fl.Parent().FieldByName("Type")
	if !typ.IsValid() || Type(typ.String()) != TypeLocal {
		return true
	}
	_, err := language.Parse(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

// check returns the first unmet constraint, or nil.
func (d Draft) check() *ValidationError {
	err := draftValidator().Struct(d)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &ValidationError{Field: "draft", Message: err.Error()}
	}
	first := verrs[0]
	msg, ok := messages[first.Tag()]
	if !ok {
		msg = "is invalid"
	}
	return &ValidationError{Field: first.Field(), Message: msg}
}

func (d Draft) alert() Alert {
	a := Alert{
		Name:            d.Name,
		Type:            d.Type,
		ChannelID:       d.ChannelID,
		Recipient:       strings.TrimSpace(d.Recipient),
		Subject:         d.Subject,
		ContentTemplate: d.ContentTemplate,
	}
	if a.Type == TypeLocal {
		a.ChannelID = ""
		a.Subject = ""
	}
	return a
}
