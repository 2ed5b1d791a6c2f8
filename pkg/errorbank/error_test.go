package errorbank

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestKindMappings(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{NotFound("missing"), http.StatusNotFound, codes.NotFound},
		{Conflict("dupe"), http.StatusConflict, codes.AlreadyExists},
		{Unavailable("down"), http.StatusServiceUnavailable, codes.Unavailable},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.StatusCode(), tc.err.Message())
		assert.Equal(t, tc.code, tc.err.GRPCCode(), tc.err.Message())
	}
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("root cause")
	err := Unavailable("down", WithCause(cause))
	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindUnavailable, err.Kind())
}
