package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsSentinelIdentity(t *testing.T) {
	denied := Clone(ErrAuthorizationDenied, "Only managers and above can approve timesheets")

	assert.True(t, errors.Is(denied, ErrAuthorizationDenied))
	assert.False(t, errors.Is(denied, ErrForbidden))
	assert.Equal(t, http.StatusForbidden, denied.Status)
	assert.Equal(t, "Only managers and above can approve timesheets", denied.Error())
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("service: %w", Clone(ErrNotFound, "timesheet not found"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}
