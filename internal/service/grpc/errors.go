package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var (
	invalidArgumentErrors = []error{
		domain.ErrInvalidQuantity,
		domain.ErrProductRequired,
		domain.ErrOrderEmpty,
		domain.ErrPaymentMethodRequired,
		domain.ErrPaymentKindUnknown,
		domain.ErrCardDetailsRequired,
		domain.ErrWalletPhoneRequired,
	}
	failedPreconditionErrors = []error{
		domain.ErrStockUnavailable,
		domain.ErrQuantityBelowMinimum,
		domain.ErrOrderNotPending,
		domain.ErrOrderNotCancellable,
		domain.ErrPaymentDeclined,
	}
)

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// toStatus переводит ошибку сервиса в gRPC-статус. Неизвестные ошибки логируются и скрываются.
func toStatus(logger *log.Entry, operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case matchesAny(err, invalidArgumentErrors):
		return status.Error(codes.InvalidArgument, err.Error())
	case matchesAny(err, failedPreconditionErrors):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrOrderExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	logger.WithError(err).WithField("operation", operation).Error("storefront operation failed")
	return status.Error(codes.Internal, "internal error")
}

func invalidArgument(err error) error {
	if matchesAny(err, invalidArgumentErrors) || domain.IsNotFound(err) {
		return err
	}
	return status.Error(codes.InvalidArgument, err.Error())
}
