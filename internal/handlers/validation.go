package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]+$`)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags. Safe to call more
// than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(f reflect.StructField) string {
				name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
				if name == "" || name == "-" {
					return f.Name
				}
				return name
			})
			_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
				return phonePattern.MatchString(fl.Field().String())
			})
		}
	})
}

func validPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "phone":
			msgs = append(msgs, field+" may only contain digits, spaces, dashes, plus signs and parentheses")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
