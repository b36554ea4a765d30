package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))

	wrapped := fmt.Errorf("outer: %w", &ExitError{Code: 7, Message: "custom"})
	assert.Equal(t, 7, GetExitCode(wrapped))
}

func TestExitErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := setupError("source database", cause)

	assert.Equal(t, "source database: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "interrupted", (&ExitError{Code: ExitFailure, Message: "interrupted"}).Error())
}
