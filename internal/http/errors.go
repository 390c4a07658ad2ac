package http

import (
	"errors"
	"net/http"

	"kaskelas/internal/core"
	"kaskelas/internal/insights"
	"kaskelas/internal/log"
)

// domainErrors are rejected with 422; the message is safe to show.
var domainErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrDescriptionLength,
	core.ErrInvalidType,
	core.ErrInvalidCategory,
	core.ErrEmptyFund,
	core.ErrUnknownFund,
	core.ErrEmptyClassID,
	core.ErrEmptyClassName,
	core.ErrDuplicateFund,
	core.ErrInvalidSplitRule,
}

// errorResponse maps err to a status code and client-facing body.
func errorResponse(err error) *ResponseBuilder {
	if fields := validationFields(err); fields != nil {
		b := UnprocessableEntityError("validation failed")
		for name, tag := range fields {
			b.Field(name, tag)
		}
		return b
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		return UnprocessableEntityError("validation failed").Field(fe.Field, fe.Err.Error())
	}

	switch {
	case errors.Is(err, errMalformedBody):
		return BadRequestError(err.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("not found")
	case errors.Is(err, insights.ErrDisabled):
		return ServiceUnavailableError("insights are not configured")
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return UnprocessableEntityError(err.Error())
		}
	}
	return InternalServerError("internal error")
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse(err)
	if resp.statusCode >= 500 {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
	resp.Write(w)
}
