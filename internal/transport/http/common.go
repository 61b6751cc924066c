// Package http contains the HTTP transport layer: request binding,
// validation and response envelopes over the service layer.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"kdsops/internal/auth"
	apierrors "kdsops/internal/errors"
	"kdsops/pkg/contracts/domain"
)

var validate = validator.New()

// bind decodes and validates a JSON request body.
func bind(r *http.Request, dst interface{}) *apierrors.APIError {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierrors.InvalidRequestWithError(err)
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apierrors.ErrValidation(fe.Field(), "failed on the '"+fe.Tag()+"' rule")
		}
		return apierrors.ErrValidationFailed
	}
	return nil
}

// respond writes the success envelope with the given status.
func respond(w http.ResponseWriter, r *http.Request, status int, message string, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, apierrors.NewSuccessResponse(message, data))
}

// respondErr writes the error envelope for any error, collapsing unexpected
// ones to the generic internal error.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierrors.AsAPIError(err)
	render.Status(r, apiErr.StatusCode)
	render.JSON(w, r, apierrors.NewErrorResponse(apiErr))
}

// sessionPayload is the response shape shared by every login-style endpoint.
type sessionPayload struct {
	Session *domain.Session        `json:"session"`
	User    sessionUser            `json:"user"`
	Outlet  *domain.Outlet         `json:"outlet,omitempty"`
	Chain   *domain.Chain          `json:"chain,omitempty"`
	Section *domain.SectionManager `json:"section,omitempty"`
}

type sessionUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"full_name,omitempty"`
}

func newSessionPayload(result *auth.Result) sessionPayload {
	return sessionPayload{
		Session: result.Session,
		User: sessionUser{
			ID:       result.User.ID,
			Email:    result.User.Email,
			Role:     result.Role,
			FullName: result.User.MetaString(domain.FullNameKey),
		},
		Outlet:  result.Outlet,
		Chain:   result.Chain,
		Section: result.Section,
	}
}
