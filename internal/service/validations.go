package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
)

// Package for custom validations
var (
	validate *validator.Validate
	once     sync.Once
)

func InitValidator() {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("alphanum_underscore", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			for i, char := range value {
				// Cannot be started with a digit or underscore
				if i == 0 && (unicode.IsDigit(char) || char == '_') {
					return false
				}
				// Digits, letters or underscore
				if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' {
					return false
				}
			}
			return true
		})
		validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate.RegisterValidation("pgtext", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return utf8.ValidString(v) && !strings.ContainsRune(v, 0)
		})
	})
}

func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		err = errors.New("validation error: ")
		for _, fieldErr := range validationErrors {
			err = errors.Join(err, fieldErr)
		}
		return err
	}
	return errors.New("validation unexpected error: " + err.Error())
}

func validateSession(req *SessionRequest) error {
	InitValidator()
	if err := validate.Struct(*req); err != nil {
		return fmt.Errorf("%w: %w", errorvalues.ErrInvalidSession, validationError(err))
	}
	if req.StartedAt.IsZero() {
		return fmt.Errorf("%w: started_at is required", errorvalues.ErrInvalidSession)
	}
	return nil
}
