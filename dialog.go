package standupscot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexandre-normand/standupscot/standup"
	"github.com/go-playground/validator/v10"
	"github.com/slack-go/slack"
)

var validate = validator.New()

// standupSubmission holds the values of a submitted standup dialog
type standupSubmission struct {
	Team     string `validate:"required,max=64"`
	Today    string `validate:"required,max=3000"`
	Previous string `validate:"max=3000"`
	Blockers string `validate:"max=3000"`
}

// dialog element names by submission field
var elementsByField = map[string]string{
	"Team":     TeamElement,
	"Today":    TodayElement,
	"Previous": PreviousElement,
	"Blockers": BlockersElement,
}

func newStandupSubmission(values map[string]string) (ss standupSubmission) {
	return standupSubmission{
		Team:     strings.TrimSpace(values[TeamElement]),
		Today:    strings.TrimSpace(values[TodayElement]),
		Previous: strings.TrimSpace(values[PreviousElement]),
		Blockers: strings.TrimSpace(values[BlockersElement]),
	}
}

// validate returns the dialog validation errors of the submission, if any
func (ss standupSubmission) validate() (validationErrs []slack.DialogInputValidationError) {
	validationErrs = make([]slack.DialogInputValidationError, 0)

	var fieldErrs validator.ValidationErrors
	if err := validate.Struct(ss); errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			validationErrs = append(validationErrs, slack.DialogInputValidationError{Name: elementsByField[fe.Field()], Error: validationMessage(fe)})
		}
	}

	return validationErrs
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return fmt.Sprintf("This field can't be longer than %s characters", fe.Param())
	default:
		return fmt.Sprintf("Invalid value (%s)", fe.Tag())
	}
}

// record returns the standup record of username on date for the submission
func (ss standupSubmission) record(username string, date string) (r standup.Record) {
	return standup.Record{
		Username:   username,
		Team:       ss.Team,
		DatePosted: date,
		Today:      ss.Today,
		Previous:   standup.Optional(ss.Previous),
		Blockers:   standup.Optional(ss.Blockers),
	}
}
