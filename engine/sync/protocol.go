package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/motorlot/motorlot/engine/domain"
)

// SeedStockSize is the number of cars provisioned with every new
// dealership.
var SeedStockSize = len(domain.SeedCatalog)

// ProvisionDealership creates the dealership entity, then creates one car
// per catalog entry with a freshly generated registration and links each
// via STOCKS. Seeding is best-effort: a failure mid-loop leaves the
// dealership with fewer cars and no rollback; the dealership identity is
// returned alongside the error.
func (s *Service) ProvisionDealership(ctx context.Context, name string) (domain.Identity, error) {
	ctx, span := s.tracer.Start(ctx, "sync.ProvisionDealership")
	defer span.End()

	dealerID, err := s.CreateEntity(ctx, domain.DealershipAttrs{Name: name})
	if err != nil {
		span.RecordError(err)
		return dealerID, err
	}

	for i, car := range domain.SeedCatalog {
		car.Registration = domain.NewRegistration(car.Manufacturer)
		carID, err := s.CreateEntity(ctx, car)
		if err != nil {
			span.RecordError(err)
			s.log.Warn("dealership seeding stopped early",
				"dealership", dealerID,
				"seeded", i,
				"of", SeedStockSize,
			)
			return dealerID, fmt.Errorf("seed car %d of %d: %w", i+1, SeedStockSize, err)
		}
		if err := s.LinkCarToDealership(ctx, dealerID, carID); err != nil {
			span.RecordError(err)
			return dealerID, fmt.Errorf("link seed car %d of %d: %w", i+1, SeedStockSize, err)
		}
	}

	s.log.Info("dealership provisioned", "id", dealerID, "name", name, "cars", SeedStockSize)
	return dealerID, nil
}

// TransferCar is the purchase protocol: the STOCKS edge from the dealership
// is removed, then an OWNS edge to the customer is created. The car must
// currently be stocked by exactly that dealership or the call fails with
// ErrOwnershipMismatch and mutates nothing. When edge deletion succeeds but
// edge creation fails, the car is left unassigned rather than reverted;
// there is never a moment with both edges.
func (s *Service) TransferCar(ctx context.Context, carID, fromDealership, toCustomer domain.Identity) error {
	ctx, span := s.tracer.Start(ctx, "sync.TransferCar")
	defer span.End()

	src, ok, err := s.graph.FindEdgeSource(ctx, carID, domain.RelStocks)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok || src != fromDealership {
		return fmt.Errorf("transfer car %s from %s: %w", carID, fromDealership, domain.ErrOwnershipMismatch)
	}

	removed, err := s.graph.DeleteEdge(ctx, fromDealership, carID, domain.RelStocks)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !removed {
		// The precondition held a moment ago; the edge vanished underneath us.
		return fmt.Errorf("transfer car %s from %s: %w", carID, fromDealership, domain.ErrOwnershipMismatch)
	}

	created, err := s.graph.CreateEdge(ctx, toCustomer, carID, domain.RelOwns)
	if err != nil {
		span.RecordError(err)
		s.log.Error("ownership edge creation failed, car left unassigned",
			"car", carID,
			"customer", toCustomer,
		)
		return err
	}
	if !created {
		s.log.Error("ownership edge rejected, car left unassigned",
			"car", carID,
			"customer", toCustomer,
		)
		return fmt.Errorf("transfer car %s: customer %s does not exist, car left unassigned", carID, toCustomer)
	}

	s.count("sync_transfers_total")
	s.publish(ctx, SubjectCarTransferred, TransferEvent{
		Car:  carID,
		From: fromDealership,
		To:   toCustomer,
		At:   time.Now().UTC(),
	})
	return nil
}

// LinkCarToDealership stocks a car. The car must be unassigned: a car with
// an existing STOCKS or OWNS edge fails with ErrAlreadyAssigned.
func (s *Service) LinkCarToDealership(ctx context.Context, dealershipID, carID domain.Identity) error {
	for _, rel := range []domain.Relation{domain.RelStocks, domain.RelOwns} {
		holder, ok, err := s.graph.FindEdgeSource(ctx, carID, rel)
		if err != nil {
			return err
		}
		if ok {
			s.count("sync_link_rejections_total")
			return fmt.Errorf("car %s held by %s via %s: %w", carID, holder, rel, domain.ErrAlreadyAssigned)
		}
	}

	created, err := s.graph.CreateEdge(ctx, dealershipID, carID, domain.RelStocks)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("link car %s to dealership %s: endpoint missing", carID, dealershipID)
	}
	return nil
}

// UnlinkCar removes the car's single relationship edge, whichever kind it
// is. Returns false when the car is already unassigned.
func (s *Service) UnlinkCar(ctx context.Context, carID domain.Identity) (bool, error) {
	for _, rel := range []domain.Relation{domain.RelStocks, domain.RelOwns} {
		holder, ok, err := s.graph.FindEdgeSource(ctx, carID, rel)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		removed, err := s.graph.DeleteEdge(ctx, holder, carID, rel)
		if err != nil {
			return false, err
		}
		return removed, nil
	}
	return false, nil
}

// CarAssignment resolves a car's position in the assignment state machine.
func (s *Service) CarAssignment(ctx context.Context, carID domain.Identity) (domain.Assignment, error) {
	if holder, ok, err := s.graph.FindEdgeSource(ctx, carID, domain.RelStocks); err != nil {
		return domain.Assignment{}, err
	} else if ok {
		return domain.Assignment{State: domain.Stocked, Holder: holder}, nil
	}

	if holder, ok, err := s.graph.FindEdgeSource(ctx, carID, domain.RelOwns); err != nil {
		return domain.Assignment{}, err
	} else if ok {
		return domain.Assignment{State: domain.Owned, Holder: holder}, nil
	}

	return domain.Assignment{State: domain.Unassigned}, nil
}

// DealershipStock lists the identities of the cars a dealership currently
// stocks.
func (s *Service) DealershipStock(ctx context.Context, dealershipID domain.Identity) ([]domain.Identity, error) {
	return s.graph.ListEdgeTargets(ctx, dealershipID, domain.RelStocks)
}
