package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories"
)

const (
	cartIDPrefix     = "cart_"
	cartLineIDPrefix = "line_"

	defaultMaxLineQuantity = 99
)

// Merge adjustment reasons.
const (
	MergeReasonCappedToStock    = "capped_to_stock"
	MergeReasonOutOfStock       = "out_of_stock"
	MergeReasonUnavailable      = "unavailable"
	MergeReasonCurrencyMismatch = "currency_mismatch"
)

var errCartRepositoryRequired = errors.New("cart service: cart repository is required")

// CartServiceDeps wires the repositories required for cart operations.
type CartServiceDeps struct {
	Carts           repositories.CartRepository
	Catalog         repositories.CatalogReader
	Inventory       InventoryService
	UnitOfWork      repositories.UnitOfWork
	Events          OrderEventPublisher
	MaxLineQuantity int
	Clock           func() time.Time
	IDGenerator     func() string
	Logger          func(context.Context, string, map[string]any)
}

type cartService struct {
	carts      repositories.CartRepository
	catalog    repositories.CatalogReader
	inventory  InventoryService
	unitOfWork repositories.UnitOfWork
	events     eventPublisher
	maxQty     int
	newID      func() string
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog reader is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("cart service: inventory service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	maxQty := deps.MaxLineQuantity
	if maxQty <= 0 {
		maxQty = defaultMaxLineQuantity
	}

	return &cartService{
		carts:      deps.Carts,
		catalog:    deps.Catalog,
		inventory:  deps.Inventory,
		unitOfWork: deps.UnitOfWork,
		events:     eventPublisher{events: deps.Events, logger: logger},
		maxQty:     maxQty,
		newID:      idGen,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// GetOrCreate loads the owner's active cart, creating an empty one when absent.
func (s *cartService) GetOrCreate(ctx context.Context, owner CartOwner) (Cart, error) {
	if !owner.Valid() {
		return Cart{}, badRequest("cart owner is required")
	}

	cart, err := s.carts.FindActiveByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !isRepoNotFound(err) {
		return Cart{}, translateRepoError(err)
	}

	cart = s.newCart(owner)
	if err := s.carts.Insert(ctx, cart); err != nil {
		if isRepoConflict(err) {
			// lost the creation race; the winner's cart is the active one
			if existing, findErr := s.carts.FindActiveByOwner(ctx, owner); findErr == nil {
				return existing, nil
			}
		}
		return Cart{}, translateRepoError(err)
	}
	s.logger(ctx, "cart.created", map[string]any{"cart": cart.ID, "owner": owner.Key()})
	return cart, nil
}

func (s *cartService) Get(ctx context.Context, owner CartOwner, cartID string) (Cart, error) {
	if !owner.Valid() {
		return Cart{}, badRequest("cart owner is required")
	}
	cart, _, err := s.resolveCart(ctx, owner, cartID, false)
	if err != nil {
		return Cart{}, translateRepoError(err)
	}
	return cart, nil
}

func (s *cartService) AddLine(ctx context.Context, cmd AddCartLineCommand) (Cart, error) {
	if !cmd.Owner.Valid() {
		return Cart{}, badRequest("cart owner is required")
	}
	variantID := strings.TrimSpace(cmd.VariantID)
	if variantID == "" {
		return Cart{}, badRequest("variant id is required")
	}
	if err := s.validateQuantity(cmd.Quantity); err != nil {
		return Cart{}, err
	}

	var result Cart
	err := s.runInTx(ctx, func(ctx context.Context) error {
		cart, exists, err := s.resolveCart(ctx, cmd.Owner, cmd.CartID, true)
		if err != nil {
			return err
		}
		variant, err := s.purchasableVariant(ctx, variantID)
		if err != nil {
			return err
		}

		idx := cart.LineByVariant(variantID)
		quantity := cmd.Quantity
		if idx >= 0 {
			quantity += cart.Lines[idx].Quantity
		}
		if err := s.validateQuantity(quantity); err != nil {
			return err
		}
		if idx < 0 {
			if currency := cart.Summary().Currency; currency != "" && currency != variant.Currency {
				return badRequest("cart currency %s does not match variant currency %s", currency, variant.Currency)
			}
		}
		if err := s.inventory.CheckAvailable(ctx, []StockLine{{VariantID: variantID, Quantity: quantity}}); err != nil {
			return err
		}

		now := s.now()
		if idx >= 0 {
			cart.Lines[idx].Quantity = quantity
			cart.Lines[idx].UpdatedAt = now
		} else {
			cart.Lines = append(cart.Lines, s.newLine(variant, quantity, now))
		}
		cart.UpdatedAt = now

		saved, err := s.save(ctx, cart, exists)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	if err != nil {
		return Cart{}, translateRepoError(err)
	}

	s.logger(ctx, "cart.line.added", map[string]any{
		"cart":     result.ID,
		"variant":  variantID,
		"quantity": cmd.Quantity,
	})
	return result, nil
}

func (s *cartService) SetLineQuantity(ctx context.Context, cmd UpdateCartLineCommand) (Cart, error) {
	if !cmd.Owner.Valid() {
		return Cart{}, badRequest("cart owner is required")
	}
	lineID := strings.TrimSpace(cmd.LineID)
	if lineID == "" {
		return Cart{}, badRequest("line id is required")
	}
	if err := s.validateQuantity(cmd.Quantity); err != nil {
		return Cart{}, err
	}

	var result Cart
	err := s.runInTx(ctx, func(ctx context.Context) error {
		cart, _, err := s.resolveCart(ctx, cmd.Owner, cmd.CartID, false)
		if err != nil {
			return err
		}
		idx := cart.LineByID(lineID)
		if idx < 0 {
			return notFound("cart line %s", lineID)
		}
		line := cart.Lines[idx]
		if _, err := s.purchasableVariant(ctx, line.VariantID); err != nil {
			return err
		}
		if err := s.inventory.CheckAvailable(ctx, []StockLine{{VariantID: line.VariantID, Quantity: cmd.Quantity}}); err != nil {
			return err
		}

		now := s.now()
		cart.Lines[idx].Quantity = cmd.Quantity
		cart.Lines[idx].UpdatedAt = now
		cart.UpdatedAt = now

		saved, err := s.carts.Update(ctx, cart)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	if err != nil {
		return Cart{}, translateRepoError(err)
	}
	return result, nil
}

func (s *cartService) RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (Cart, error) {
	if !cmd.Owner.Valid() {
		return Cart{}, badRequest("cart owner is required")
	}
	lineID := strings.TrimSpace(cmd.LineID)
	if lineID == "" {
		return Cart{}, badRequest("line id is required")
	}

	var result Cart
	err := s.runInTx(ctx, func(ctx context.Context) error {
		cart, _, err := s.resolveCart(ctx, cmd.Owner, cmd.CartID, false)
		if err != nil {
			return err
		}
		idx := cart.LineByID(lineID)
		if idx < 0 {
			return notFound("cart line %s", lineID)
		}
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
		cart.UpdatedAt = s.now()

		saved, err := s.carts.Update(ctx, cart)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	if err != nil {
		return Cart{}, translateRepoError(err)
	}
	return result, nil
}

func (s *cartService) Clear(ctx context.Context, owner CartOwner, cartID string) (Cart, error) {
	if !owner.Valid() {
		return Cart{}, badRequest("cart owner is required")
	}

	var result Cart
	err := s.runInTx(ctx, func(ctx context.Context) error {
		cart, _, err := s.resolveCart(ctx, owner, cartID, false)
		if err != nil {
			return err
		}
		cart.Lines = []CartLine{}
		cart.UpdatedAt = s.now()

		saved, err := s.carts.Update(ctx, cart)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	if err != nil {
		return Cart{}, translateRepoError(err)
	}
	s.logger(ctx, "cart.cleared", map[string]any{"cart": result.ID})
	return result, nil
}

// MergeAnonymous folds the anonymous cart into the user's active cart. Existing lines keep the
// larger of their current quantity and the combined quantity capped at available stock; new lines
// are copied at their snapshot price. The anonymous cart becomes merged in the same unit of work.
func (s *cartService) MergeAnonymous(ctx context.Context, cmd MergeCartCommand) (CartMergeResult, error) {
	userID := strings.TrimSpace(cmd.UserID)
	anonymousID := strings.TrimSpace(cmd.AnonymousID)
	cartID := strings.TrimSpace(cmd.CartID)
	if userID == "" {
		return CartMergeResult{}, badRequest("user id is required")
	}
	if anonymousID == "" || cartID == "" {
		return CartMergeResult{}, notFound("anonymous cart")
	}

	var (
		result   CartMergeResult
		sourceID string
	)
	err := s.runInTx(ctx, func(ctx context.Context) error {
		anon, err := s.carts.FindByID(ctx, cartID)
		if err != nil {
			if isRepoNotFound(err) {
				return notFound("anonymous cart %s", cartID)
			}
			return err
		}
		if !anon.Owner.IsAnonymous() || anon.Owner.AnonymousID != anonymousID || !anon.IsActive() {
			return notFound("anonymous cart %s", cartID)
		}

		target, exists, err := s.resolveCart(ctx, domain.UserOwner(userID), "", true)
		if err != nil {
			return err
		}

		variants := make(map[string]CatalogVariant, len(anon.Lines))
		ids := make([]string, 0, len(anon.Lines))
		for _, line := range anon.Lines {
			variant, err := s.catalog.GetVariant(ctx, line.VariantID)
			if err != nil {
				if isRepoNotFound(err) {
					continue
				}
				return err
			}
			variants[line.VariantID] = variant
			ids = append(ids, line.VariantID)
		}
		available, err := s.inventory.Available(ctx, ids)
		if err != nil {
			return err
		}

		now := s.now()
		adjustments := make([]CartMergeAdjustment, 0)
		for _, line := range anon.Lines {
			variant, ok := variants[line.VariantID]
			if !ok || !variant.Purchasable() {
				adjustments = append(adjustments, CartMergeAdjustment{
					VariantID: line.VariantID, Requested: line.Quantity, Reason: MergeReasonUnavailable,
				})
				continue
			}
			limit := min(available[line.VariantID], s.maxQty)

			if idx := target.LineByVariant(line.VariantID); idx >= 0 {
				existing := target.Lines[idx].Quantity
				requested := existing + line.Quantity
				merged := max(existing, min(requested, limit))
				if merged < requested {
					adjustments = append(adjustments, CartMergeAdjustment{
						VariantID: line.VariantID, Requested: requested, Applied: merged, Reason: MergeReasonCappedToStock,
					})
				}
				target.Lines[idx].Quantity = merged
				target.Lines[idx].UpdatedAt = now
				continue
			}

			if currency := target.Summary().Currency; currency != "" && currency != line.Currency {
				adjustments = append(adjustments, CartMergeAdjustment{
					VariantID: line.VariantID, Requested: line.Quantity, Reason: MergeReasonCurrencyMismatch,
				})
				continue
			}
			applied := min(line.Quantity, limit)
			if applied <= 0 {
				adjustments = append(adjustments, CartMergeAdjustment{
					VariantID: line.VariantID, Requested: line.Quantity, Reason: MergeReasonOutOfStock,
				})
				continue
			}
			if applied < line.Quantity {
				adjustments = append(adjustments, CartMergeAdjustment{
					VariantID: line.VariantID, Requested: line.Quantity, Applied: applied, Reason: MergeReasonCappedToStock,
				})
			}
			copied := line
			copied.ID = cartLineIDPrefix + s.newID()
			copied.Quantity = applied
			copied.UpdatedAt = now
			target.Lines = append(target.Lines, copied)
		}
		target.UpdatedAt = now

		anon.Status = domain.CartStatusMerged
		anon.MergedInto = target.ID
		anon.MergedBy = userID
		anon.UpdatedAt = now
		if _, err := s.carts.Update(ctx, anon); err != nil {
			return err
		}

		saved, err := s.save(ctx, target, exists)
		if err != nil {
			return err
		}
		sourceID = anon.ID
		result = CartMergeResult{Cart: saved, Adjustments: adjustments}
		return nil
	})
	if err != nil {
		return CartMergeResult{}, translateRepoError(err)
	}

	s.events.publish(ctx, OrderEvent{
		Type:       OrderEventCartMerged,
		CartID:     result.Cart.ID,
		BuyerID:    userID,
		OccurredAt: s.now(),
		Metadata: map[string]any{
			"source_cart": sourceID,
			"adjustments": len(result.Adjustments),
		},
	})
	s.logger(ctx, "cart.merged", map[string]any{
		"cart":        result.Cart.ID,
		"source_cart": sourceID,
		"adjustments": len(result.Adjustments),
	})
	return result, nil
}

// resolveCart loads the addressed cart. An empty cartID resolves the owner's active cart, which is
// built in memory (exists=false) when create is set and none is stored yet.
func (s *cartService) resolveCart(ctx context.Context, owner CartOwner, cartID string, create bool) (Cart, bool, error) {
	id := strings.TrimSpace(cartID)
	if id != "" {
		cart, err := s.carts.FindByID(ctx, id)
		if err != nil {
			if isRepoNotFound(err) {
				return Cart{}, false, notFound("cart %s", id)
			}
			return Cart{}, false, err
		}
		if cart.Owner.Key() != owner.Key() || !cart.IsActive() {
			return Cart{}, false, notFound("cart %s", id)
		}
		return cart, true, nil
	}

	cart, err := s.carts.FindActiveByOwner(ctx, owner)
	if err == nil {
		return cart, true, nil
	}
	if !isRepoNotFound(err) {
		return Cart{}, false, err
	}
	if !create {
		return Cart{}, false, notFound("no active cart")
	}
	return s.newCart(owner), false, nil
}

func (s *cartService) purchasableVariant(ctx context.Context, variantID string) (CatalogVariant, error) {
	variant, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		if isRepoNotFound(err) {
			return CatalogVariant{}, notFound("variant %s", variantID)
		}
		return CatalogVariant{}, err
	}
	if !variant.Purchasable() {
		return CatalogVariant{}, badRequest("variant %s is not available for purchase", variantID)
	}
	code, err := domain.NormalizeCurrency(variant.Currency)
	if err != nil {
		return CatalogVariant{}, badRequest("variant %s has invalid currency %q", variantID, variant.Currency)
	}
	variant.Currency = code
	return variant, nil
}

func (s *cartService) validateQuantity(quantity int) error {
	if quantity < 1 {
		return badRequest("quantity must be at least 1")
	}
	if quantity > s.maxQty {
		return badRequest("quantity must not exceed %d", s.maxQty)
	}
	return nil
}

func (s *cartService) save(ctx context.Context, cart Cart, exists bool) (Cart, error) {
	if exists {
		return s.carts.Update(ctx, cart)
	}
	if err := s.carts.Insert(ctx, cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (s *cartService) newCart(owner CartOwner) Cart {
	now := s.now()
	return Cart{
		ID:        cartIDPrefix + s.newID(),
		Owner:     owner,
		Status:    domain.CartStatusActive,
		Lines:     []CartLine{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *cartService) newLine(variant CatalogVariant, quantity int, now time.Time) CartLine {
	return CartLine{
		ID:        cartLineIDPrefix + s.newID(),
		ProductID: variant.ProductID,
		VariantID: variant.VariantID,
		SellerID:  variant.SellerID,
		Title:     variant.Title,
		SKU:       variant.SKU,
		Quantity:  quantity,
		UnitPrice: variant.Price,
		Currency:  variant.Currency,
		AddedAt:   now,
		UpdatedAt: now,
	}
}

func (s *cartService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}
