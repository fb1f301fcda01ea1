package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

// resolveLines expands every line's product reference once. A product that
// no longer exists keeps a bare reference.
func (o *Orchestrator) resolveLines(ctx context.Context, cart *domain.Cart) ([]domain.ResolvedLine, error) {
	ids := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}

	products, err := o.inventory.GetProducts(ctx, ids)
	if err != nil {
		return nil, storeError("resolve products", err)
	}
	byID := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]domain.ResolvedLine, len(cart.Items))
	for i, item := range cart.Items {
		lines[i] = domain.ResolvedLine{
			CartLine: item,
			Product:  domain.ProductRef{ID: item.ProductID, Expanded: byID[item.ProductID]},
		}
	}
	return lines, nil
}

// validateStock is the fail-fast pass. It mutates nothing and proves nothing:
// stock can still run out before the decrement pass.
func (o *Orchestrator) validateStock(ctx context.Context, lines []domain.ResolvedLine) error {
	for _, line := range lines {
		if err := checkQuantity(line.CartLine); err != nil {
			return err
		}
		ok, err := o.inventory.Validate(ctx, line.ProductID, line.Quantity)
		if errors.Is(err, repository.ErrInvalidQuantity) {
			return fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		if err != nil {
			return storeError("validate stock", err)
		}
		if !ok {
			return &StockError{
				ProductID:   line.ProductID,
				ProductName: productName(line.Product),
				Requested:   line.Quantity,
			}
		}
	}
	return nil
}

// decrementStock decrements every line in cart order. Lines decremented
// before a failure stay decremented.
func (o *Orchestrator) decrementStock(ctx context.Context, a *attempt, lines []domain.ResolvedLine) error {
	decremented := make([]string, 0, len(lines))

	for _, line := range lines {
		_, err := o.inventory.DecrementIfAvailable(ctx, line.ProductID, line.Quantity)
		if err == nil {
			decremented = append(decremented, line.ProductID)
			continue
		}

		partial := len(decremented) > 0
		if partial {
			o.metrics.PartialDecrements.Inc()
			o.log.WarnContext(ctx, "stock partially decremented, not rolled back",
				slog.String("user_id", a.buyerID),
				slog.String("failed_product_id", line.ProductID),
				slog.Any("decremented_product_ids", decremented),
				slog.Any("error", err))
		}

		if errors.Is(err, repository.ErrInsufficientStock) || errors.Is(err, repository.ErrProductNotFound) {
			return &StockError{
				ProductID:   line.ProductID,
				ProductName: productName(line.Product),
				Requested:   line.Quantity,
				Partial:     partial,
				Decremented: decremented,
			}
		}
		if errors.Is(err, repository.ErrInvalidQuantity) {
			return fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		return storeError("decrement stock", err)
	}
	return nil
}

// checkQuantity rejects a line that could only have reached the store by
// bypassing the cart service.
func checkQuantity(line domain.CartLine) error {
	if line.Quantity <= 0 {
		return fmt.Errorf("product %s: %w", line.ProductID, ErrInvalidQuantity)
	}
	return nil
}

func productName(ref domain.ProductRef) string {
	if ref.Expanded == nil {
		return ""
	}
	return ref.Expanded.Name
}
