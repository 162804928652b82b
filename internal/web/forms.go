package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// credentialsForm is the body of POST /login and POST /register.
type credentialsForm struct {
	Username string `validate:"required,email,max=254"`
	Password string `validate:"required,max=1024"`
}

// errBodyTooLarge is returned when a form exceeds http.max_body_bytes.
var errBodyTooLarge = errors.New("request body too large")

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// parseCredentials reads and validates the username/password form.
// The returned form is populated even on validation failure so the page can
// redisplay the email.
func (s *Server) parseCredentials(r *http.Request) (credentialsForm, error) {
	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return credentialsForm{}, errBodyTooLarge
		}
		return credentialsForm{}, fmt.Errorf("parsing form: %w", err)
	}

	form := credentialsForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	if err := s.validate.Struct(form); err != nil {
		return form, err
	}
	return form, nil
}

// formErrorMessage turns a validation failure into one visitor-facing sentence.
func formErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Please check the form and try again"
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "required" {
			return "Email is required"
		}
		return "Please enter a valid email address"
	case "Password":
		if fe.Tag() == "required" {
			return "Password is required"
		}
		return "Password is too long"
	default:
		return "Please check the form and try again"
	}
}
