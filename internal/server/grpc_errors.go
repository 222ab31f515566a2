package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/EmmaVellard/SolarConflux/core"
	"github.com/EmmaVellard/SolarConflux/ephem"
)

var (
	// ErrInvalidRequest is used for malformed requests.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnavailable is returned when a request needs a collaborator the
	// server was started without.
	ErrUnavailable = errors.New("not available")
)

// ToStatusError maps engine and provider errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrConfiguration),
		errors.Is(err, core.ErrInputShape),
		errors.Is(err, core.ErrUnknownMode):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ephem.ErrUnknownBody):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrUnavailable):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
