package server

import (
	"DSCEngine/internal/contract"
	"DSCEngine/internal/core"
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/query"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the ErrorInfo domain of engine rejections.
const ErrorDomain = "dscengine"

// errBadRequest marks argument decoding failures.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// toStatus maps an error to a gRPC status. Engine rejections carry an
// ErrorInfo whose reason is the ABI error name and whose metadata holds the
// revert data and payload fields.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, contract.ErrUnknownSelector):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, core.ErrDuplicateCommand):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, query.ErrNoPosition):
		return status.Error(codes.NotFound, err.Error())
	}

	revert := contract.NewRevert(err)
	if revert == nil {
		return status.Error(codes.Internal, err.Error())
	}

	code := codes.FailedPrecondition
	switch {
	case errors.Is(err, dscerr.ErrPriceUnavailable):
		code = codes.Unavailable
	case errors.Is(err, dscerr.ErrNeedsMoreThanZero), errors.Is(err, dscerr.ErrTokenNotAllowed):
		code = codes.InvalidArgument
	}

	info := &errdetails.ErrorInfo{
		Reason:   revert.Name,
		Domain:   ErrorDomain,
		Metadata: map[string]string{"revert_data": hexutil.Encode(revert.Data)},
	}
	if kind := dscerr.Kind(err); kind != nil {
		info.Metadata["kind"] = kind.Error()
	}
	var notAllowed *dscerr.TokenNotAllowedError
	if errors.As(err, &notAllowed) {
		info.Metadata["token"] = notAllowed.Token.Hex()
	}
	var breaks *dscerr.BreaksHealthFactorError
	if errors.As(err, &breaks) {
		info.Metadata["health_factor"] = breaks.HealthFactor.Dec()
	}

	st, detailErr := status.New(code, err.Error()).WithDetails(info)
	if detailErr != nil {
		return status.Error(code, err.Error())
	}
	return st.Err()
}

// ErrorInfo extracts the engine rejection details from a status error.
func ErrorInfo(err error) (*errdetails.ErrorInfo, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info, true
		}
	}
	return nil, false
}
