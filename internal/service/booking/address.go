package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
	apperrors "github.com/cleanly/booking-api/pkg/errors"
)

type resolvedAddress struct {
	display string
	id      *uuid.UUID
}

// addressResolver returns ok=false when the request does not use its form.
type addressResolver func(ctx context.Context, customerID uuid.UUID, req *model.CreateBookingRequest) (addr resolvedAddress, ok bool, err error)

// addressChain lists the accepted address forms in priority order.
func (s *Service) addressChain() []addressResolver {
	return []addressResolver{
		s.savedAddress,
		discreteAddressLines,
		freeTextAddress,
	}
}

func (s *Service) resolveAddress(ctx context.Context, customerID uuid.UUID, req *model.CreateBookingRequest) (resolvedAddress, error) {
	for _, resolve := range s.addressChain() {
		addr, ok, err := resolve(ctx, customerID, req)
		if err != nil {
			return resolvedAddress{}, err
		}
		if ok {
			return addr, nil
		}
	}
	return resolvedAddress{}, apperrors.Validation(
		"provide address, address_id (saved address), or address_line1 (with optional city, postal_code, country)")
}

func (s *Service) savedAddress(ctx context.Context, customerID uuid.UUID, req *model.CreateBookingRequest) (resolvedAddress, bool, error) {
	if req.AddressID == nil || *req.AddressID == uuid.Nil {
		return resolvedAddress{}, false, nil
	}

	addr, err := s.addresses.GetOwned(ctx, *req.AddressID, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		return resolvedAddress{}, false, apperrors.Validation("address_id not found or not owned by you")
	}
	if err != nil {
		return resolvedAddress{}, false, fmt.Errorf("failed to load address: %w", err)
	}

	id := addr.ID
	return resolvedAddress{display: addr.Display(), id: &id}, true, nil
}

func discreteAddressLines(_ context.Context, _ uuid.UUID, req *model.CreateBookingRequest) (resolvedAddress, bool, error) {
	if req.AddressLine1 == nil || strings.TrimSpace(*req.AddressLine1) == "" {
		return resolvedAddress{}, false, nil
	}
	display := model.JoinAddressParts(*req.AddressLine1, req.AddressLine2, req.City, req.PostalCode, req.Country)
	return resolvedAddress{display: display}, true, nil
}

func freeTextAddress(_ context.Context, _ uuid.UUID, req *model.CreateBookingRequest) (resolvedAddress, bool, error) {
	if req.Address == nil || strings.TrimSpace(*req.Address) == "" {
		return resolvedAddress{}, false, nil
	}
	return resolvedAddress{display: strings.TrimSpace(*req.Address)}, true, nil
}
