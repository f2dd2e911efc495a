package httpapi

import (
	"errors"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

func errorIsInvalidInput(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput)
}

func errorIsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrServiceUnavailable) ||
		errors.Is(err, domain.ErrServiceDegraded) ||
		errors.Is(err, domain.ErrIndexUnavailable) ||
		errors.Is(err, domain.ErrEncoderUnavailable) ||
		errors.Is(err, domain.ErrTimeout)
}
