package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/evyataryagoni/cityapp/internal/countries"
	"github.com/evyataryagoni/cityapp/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// CityRequest is the body of POST /v1/cities and PUT /v1/cities/{id}
type CityRequest struct {
	Name       string     `json:"name" validate:"notblank"`
	Population Population `json:"population" validate:"gte=0"`
	Country    string     `json:"country" validate:"required,country"`
}

func (r *CityRequest) toCity(id int64) models.City {
	return models.City{
		ID:         id,
		Name:       strings.TrimSpace(r.Name),
		Population: int(r.Population),
		Country:    strings.TrimSpace(r.Country),
	}
}

// Population accepts a JSON number or a numeric string
// Anything that is not a whole number decodes to 0, like an empty form field.
// Negative numbers are kept so validation can reject them.
type Population int

// UnmarshalJSON implements json.Unmarshaler
func (p *Population) UnmarshalJSON(data []byte) error {
	*p = 0

	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	*p = Population(n)
	return nil
}

// validatorSet wraps a validator configured for city input
type validatorSet struct {
	v *validator.Validate
}

func newValidator() *validatorSet {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		return countries.Contains(fl.Field().String())
	})

	return &validatorSet{v: v}
}

// check returns a user-facing message, or "" when req is valid
func (s *validatorSet) check(req *CityRequest) string {
	err := s.v.Struct(req)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "notblank":
			msgs = append(msgs, fmt.Sprintf("'%s' is required", fe.Field()))
		case "country":
			msgs = append(msgs, fmt.Sprintf("'%s' must be one of the listed countries", fe.Field()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("'%s' must not be negative", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("'%s' is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}
