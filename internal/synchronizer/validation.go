package synchronizer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/pkg/entity"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func initValidator() {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		// Postgres text rejects NUL bytes and invalid UTF-8
		validate.RegisterValidation("pgtext", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return utf8.ValidString(v) && !strings.ContainsRune(v, 0)
		})
	})
}

// validateForm applies the same bounds the store enforces, so a queued session can always be synced later.
func validateForm(form entity.SessionForm) error {
	initValidator()
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return fmt.Errorf("%w: %s failed on %s", errorvalues.ErrInvalidSession, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %w", errorvalues.ErrInvalidSession, err)
}
