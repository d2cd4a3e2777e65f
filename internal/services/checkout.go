package service

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/metrics"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/pricing"
	repository "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories"
	"github.com/pharmaplace/pharmacy-commerce-platform/pkg/sendgrid"
	"github.com/pharmaplace/pharmacy-commerce-platform/pkg/stripe"
	"github.com/shopspring/decimal"
)

// Metadata keys attached to the payment intent at creation and read back at
// settlement. The webhook never re-reads live cart state; these are the
// source of truth for the settled amounts.
const (
	metaCartID    = "cart_id"
	metaUserID    = "user_id"
	metaEmail     = "email"
	metaSubtotal  = "subtotal"
	metaDiscount  = "discount"
	metaShipping  = "shipping"
	metaTotal     = "total"
	metaPromoCode = "promo_code"
	metaItems     = "items"
)

// Stripe caps each metadata value at 500 characters, so the items payload
// of a large cart is spilled across numbered keys (items, items_1, ...).
const metaValueLimit = 500

func setChunkedMetadata(metadata map[string]string, key, value string) {
	for i := 0; value != ""; i++ {
		chunkKey := key
		if i > 0 {
			chunkKey = fmt.Sprintf("%s_%d", key, i)
		}

		n := len(value)
		if n > metaValueLimit {
			n = metaValueLimit
		}

		metadata[chunkKey] = value[:n]
		value = value[n:]
	}
}

func chunkedMetadata(metadata map[string]string, key string) string {
	value := metadata[key]

	for i := 1; ; i++ {
		chunk, ok := metadata[fmt.Sprintf("%s_%d", key, i)]
		if !ok {
			return value
		}

		value += chunk
	}
}

// settlementItem is one cart line frozen into intent metadata.
type settlementItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CheckoutService struct {
	carts        repository.CartRepository
	orders       repository.OrderRepository
	promoCodes   repository.PromoCodeRepository
	shipping     repository.ShippingRepository
	users        repository.UserRepository
	promoSvc     *PromoCodeService
	stripeClient stripe.Client
	email        sendgrid.EmailService
	currency     string
	now          func() time.Time
}

func NewCheckoutService(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	promoCodes repository.PromoCodeRepository,
	shipping repository.ShippingRepository,
	users repository.UserRepository,
	promoSvc *PromoCodeService,
	stripeClient stripe.Client,
	email sendgrid.EmailService,
	currency string,
) *CheckoutService {
	return &CheckoutService{
		carts:        carts,
		orders:       orders,
		promoCodes:   promoCodes,
		shipping:     shipping,
		users:        users,
		promoSvc:     promoSvc,
		stripeClient: stripeClient,
		email:        email,
		currency:     currency,
		now:          time.Now,
	}
}

// Quote prices a cart: promotion-aware subtotal, promo-code discount,
// shipping. When no shipping method is selected yet the shipping component
// is zero; intent creation requires a selection before quoting.
func (s *CheckoutService) Quote(ctx context.Context, cart *models.Cart) (*models.Quote, error) {
	subtotal := cart.Subtotal()
	promo := s.promoSvc.ResolveApplied(ctx, cart)

	discount := decimal.Zero
	if promo != nil {
		discount = promo.Discount(subtotal)
	}

	discounted := subtotal.Sub(discount)

	shippingCost := decimal.Zero

	if cart.ShippingMethodID != nil {
		method, err := s.shipping.GetMethodByID(ctx, *cart.ShippingMethodID)
		if err != nil {
			return nil, errors.NotFoundError("Shipping method not found").WithError(err)
		}

		shippingCost, err = pricing.ResolveShippingCost(method, cart.TotalWeightKg(), discounted, promo)
		if err != nil {
			return nil, err
		}
	}

	return &models.Quote{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shippingCost,
		Total:    discounted.Add(shippingCost),
		Promo:    promo,
	}, nil
}

// CreatePaymentIntent recomputes the payable total from live prices and
// requests a provider intent for that exact amount, freezing the breakdown
// into metadata for later reconciliation.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, identity models.CartIdentity, req *models.CreatePaymentIntentRequest) (*models.CreatePaymentIntentResponse, error) {
	cart, err := s.carts.GetByIdentity(ctx, identity)
	if err != nil {
		if stdErrors.Is(err, repository.ErrCartNotFound) {
			return nil, errors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	if err := s.carts.CleanExpiredPromotions(ctx, cart.ID); err != nil {
		return nil, errors.DatabaseError("Failed to refresh cart promotions").WithError(err)
	}

	cart, err = s.carts.GetByID(ctx, cart.ID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	if cart.IsEmpty() {
		return nil, errors.EmptyCartError("Cannot check out an empty cart")
	}

	if s.requiresMedicalInfo(cart) && !req.MedicalInfo.Complete() {
		return nil, errors.MedicalInfoRequiredError("Height, weight and the pharmacist agreement are required for medicated products")
	}

	if cart.ShippingMethodID == nil {
		return nil, errors.BadRequestError("A shipping method must be selected before checkout")
	}

	email := req.Email

	if cart.UserID != nil {
		user, err := s.users.GetByID(ctx, *cart.UserID)
		if err != nil {
			return nil, errors.DatabaseError("Failed to retrieve user").WithError(err)
		}

		email = user.Email
	}

	if email == "" {
		return nil, errors.BadRequestError("An email address is required for guest checkout")
	}

	quote, err := s.Quote(ctx, cart)
	if err != nil {
		return nil, err
	}

	metadata, err := s.buildMetadata(cart, quote, email)
	if err != nil {
		return nil, errors.InternalError("Failed to build intent metadata").WithError(err)
	}

	intent, err := s.stripeClient.CreatePaymentIntent(models.MinorUnits(quote.Total), s.currency, metadata)
	if err != nil {
		return nil, errors.ThirdPartyError("Failed to create payment intent").WithError(err)
	}

	return &models.CreatePaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		Shipping:        quote.Shipping,
		Total:           quote.Total,
	}, nil
}

func (s *CheckoutService) requiresMedicalInfo(cart *models.Cart) bool {
	for i := range cart.Items {
		if cart.Items[i].Product != nil && cart.Items[i].Product.RequiresMedicalInfo {
			return true
		}
	}

	return false
}

func (s *CheckoutService) buildMetadata(cart *models.Cart, quote *models.Quote, email string) (map[string]string, error) {
	items := make([]settlementItem, 0, len(cart.Items))

	for i := range cart.Items {
		items = append(items, settlementItem{
			ProductID: cart.Items[i].ProductID,
			Quantity:  cart.Items[i].Quantity,
			UnitPrice: cart.Items[i].UnitPrice(),
		})
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settlement items: %w", err)
	}

	metadata := map[string]string{
		metaCartID:   cart.ID.String(),
		metaUserID:   "guest",
		metaEmail:    email,
		metaSubtotal: quote.Subtotal.StringFixed(2),
		metaDiscount: quote.Discount.StringFixed(2),
		metaShipping: quote.Shipping.StringFixed(2),
		metaTotal:    quote.Total.StringFixed(2),
	}

	setChunkedMetadata(metadata, metaItems, string(itemsJSON))

	if cart.UserID != nil {
		metadata[metaUserID] = cart.UserID.String()
	}

	if quote.Promo != nil {
		metadata[metaPromoCode] = quote.Promo.Code
	}

	return metadata, nil
}

// ProcessWebhook ingests a provider event. Error classification matters
// here: signature failures are 400, conditions that will never succeed on
// retry are swallowed (200), and only genuinely transient failures
// propagate so the provider retries.
func (s *CheckoutService) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.stripeClient.VerifyWebhookSignature(payload, signature)
	if err != nil {
		return errors.SignatureVerificationError("Webhook signature verification failed").WithError(err)
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case "payment_intent.succeeded":
		return s.settle(ctx, event)
	case "payment_intent.payment_failed":
		// No order is created for a failed intent. Recorded for a future
		// customer notification flow.
		slog.Info("Payment intent failed",
			slog.String("intentId", objectString(event, "id")))

		return nil
	case "charge.refunded":
		return s.refund(ctx, event)
	default:
		slog.Debug("Ignoring webhook event", slog.String("type", string(event.Type)))

		return nil
	}
}

func objectString(event stripe.Event, key string) string {
	value, _ := event.Data.Object[key].(string)

	return value
}

func eventMetadata(event stripe.Event) map[string]string {
	metadata := make(map[string]string)

	raw, _ := event.Data.Object["metadata"].(map[string]any)
	for key, value := range raw {
		if str, ok := value.(string); ok {
			metadata[key] = str
		}
	}

	return metadata
}

// settle converts a succeeded payment into a durable Order exactly once and
// clears the originating cart. Malformed metadata is terminal: retrying the
// same event can never fix it, so it is logged and acknowledged.
func (s *CheckoutService) settle(ctx context.Context, event stripe.Event) error {
	intentID := objectString(event, "id")
	if intentID == "" {
		slog.Error("Webhook succeeded event without intent id", slog.String("eventId", event.ID))

		return nil
	}

	metadata := eventMetadata(event)

	cartID, err := uuid.Parse(metadata[metaCartID])
	if err != nil {
		slog.Error("Webhook metadata missing usable cart id; skipping settlement",
			slog.String("intentId", intentID),
			slog.String("cartId", metadata[metaCartID]))
		metrics.SettlementsTotal.WithLabelValues("terminal").Inc()

		return nil
	}

	order, err := s.orderFromMetadata(intentID, metadata)
	if err != nil {
		slog.Error("Webhook metadata unusable; skipping settlement",
			slog.String("intentId", intentID),
			slog.String("error", err.Error()))
		metrics.SettlementsTotal.WithLabelValues("terminal").Inc()

		return nil
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if stdErrors.Is(err, repository.ErrDuplicateOrder) {
			return s.resumeSettlement(ctx, cartID, intentID, metadata)
		}

		metrics.SettlementsTotal.WithLabelValues("error").Inc()

		return errors.DatabaseError("Failed to persist order").WithError(err)
	}

	if err := s.finishSettlement(ctx, cartID, order, metadata); err != nil {
		// The order exists; a retry will trip the duplicate guard and
		// resume from here.
		metrics.SettlementsTotal.WithLabelValues("error").Inc()

		return err
	}

	metrics.SettlementsTotal.WithLabelValues("settled").Inc()
	slog.Info("Order settled",
		slog.String("orderNumber", order.OrderNumber),
		slog.String("intentId", intentID))

	return nil
}

// finishSettlement runs the steps that follow the order insert: clear the
// settled cart, consume the promo redemption, send the confirmation.
func (s *CheckoutService) finishSettlement(ctx context.Context, cartID uuid.UUID, order *models.Order, metadata map[string]string) error {
	if err := s.carts.ClearItems(ctx, cartID); err != nil {
		return errors.DatabaseError("Failed to clear settled cart").WithError(err)
	}

	if code := metadata[metaPromoCode]; code != "" {
		if err := s.promoCodes.IncrementUsage(ctx, code); err != nil {
			// Payment is already taken; an exhausted or deleted code at
			// this point is logged, never bounced back to the provider.
			slog.Warn("Failed to consume promo code usage at settlement",
				slog.String("code", code),
				slog.String("error", err.Error()))
		}
	}

	s.sendConfirmation(ctx, order, metadata)

	return nil
}

// resumeSettlement handles a replayed succeeded event. A settled cart that
// still holds items means an earlier delivery persisted the order but died
// before the post-insert steps; those are completed before the replay is
// acknowledged, so a crash between insert and cart clear cannot strand the
// cart or the promo redemption.
func (s *CheckoutService) resumeSettlement(ctx context.Context, cartID uuid.UUID, intentID string, metadata map[string]string) error {
	cart, err := s.carts.GetByID(ctx, cartID)

	switch {
	case stdErrors.Is(err, repository.ErrCartNotFound):
		// Nothing left to finish.
	case err != nil:
		metrics.SettlementsTotal.WithLabelValues("error").Inc()

		return errors.DatabaseError("Failed to inspect cart for settlement replay").WithError(err)
	case !cart.IsEmpty():
		order, err := s.orders.GetByPaymentIntentID(ctx, intentID)
		if err != nil {
			metrics.SettlementsTotal.WithLabelValues("error").Inc()

			return errors.DatabaseError("Failed to load settled order for replay").WithError(err)
		}

		if err := s.finishSettlement(ctx, cartID, order, metadata); err != nil {
			metrics.SettlementsTotal.WithLabelValues("error").Inc()

			return err
		}

		slog.Info("Completed interrupted settlement on replay",
			slog.String("orderNumber", order.OrderNumber),
			slog.String("intentId", intentID))
	}

	metrics.SettlementsTotal.WithLabelValues("duplicate").Inc()

	return errors.DuplicateSettlementError("Payment intent already settled")
}

func (s *CheckoutService) orderFromMetadata(intentID string, metadata map[string]string) (*models.Order, error) {
	subtotal, err := decimal.NewFromString(metadata[metaSubtotal])
	if err != nil {
		return nil, fmt.Errorf("bad subtotal %q: %w", metadata[metaSubtotal], err)
	}

	discount, err := decimal.NewFromString(metadata[metaDiscount])
	if err != nil {
		return nil, fmt.Errorf("bad discount %q: %w", metadata[metaDiscount], err)
	}

	shipping, err := decimal.NewFromString(metadata[metaShipping])
	if err != nil {
		return nil, fmt.Errorf("bad shipping %q: %w", metadata[metaShipping], err)
	}

	total, err := decimal.NewFromString(metadata[metaTotal])
	if err != nil {
		return nil, fmt.Errorf("bad total %q: %w", metadata[metaTotal], err)
	}

	var items []settlementItem

	if err := json.Unmarshal([]byte(chunkedMetadata(metadata, metaItems)), &items); err != nil {
		return nil, fmt.Errorf("bad items payload: %w", err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no items recorded for intent %s", intentID)
	}

	now := s.now()

	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     models.NewOrderNumber(now),
		Status:          models.OrderStatusConfirmed,
		Subtotal:        subtotal,
		Discount:        discount,
		ShippingCost:    shipping,
		Tax:             decimal.Zero,
		Total:           total,
		Email:           metadata[metaEmail],
		PaymentIntentID: intentID,
	}

	if userID := metadata[metaUserID]; userID != "" && userID != "guest" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			return nil, fmt.Errorf("bad user id %q: %w", userID, err)
		}

		order.UserID = &parsed
	}

	if code := metadata[metaPromoCode]; code != "" {
		order.PromoCode = &code
	}

	for _, item := range items {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	return order, nil
}

// sendConfirmation is best effort: the settled order is the source of truth
// and a mail failure never fails the webhook.
func (s *CheckoutService) sendConfirmation(ctx context.Context, order *models.Order, metadata map[string]string) {
	toAddress := order.Email
	firstName := ""

	if order.UserID != nil {
		if user, err := s.users.GetByID(ctx, *order.UserID); err == nil {
			firstName = user.FirstName

			if toAddress == "" {
				toAddress = user.Email
			}
		}
	}

	if toAddress == "" {
		slog.Warn("No recipient for order confirmation",
			slog.String("orderNumber", order.OrderNumber))

		return
	}

	if err := s.email.SendOrderConfirmation(ctx, toAddress, firstName, order.OrderNumber, order.Total); err != nil {
		slog.Error("Failed to send order confirmation",
			slog.String("orderNumber", order.OrderNumber),
			slog.String("error", err.Error()))
	}
}

// refund transitions an already-settled order to refunded. Unknown intents
// and repeated refund events are terminal.
func (s *CheckoutService) refund(ctx context.Context, event stripe.Event) error {
	intentID := objectString(event, "payment_intent")
	if intentID == "" {
		slog.Error("Refund event without payment intent id", slog.String("eventId", event.ID))

		return nil
	}

	order, err := s.orders.GetByPaymentIntentID(ctx, intentID)
	if err != nil && !stdErrors.Is(err, repository.ErrOrderNotFound) {
		return errors.DatabaseError("Failed to look up order for refund").WithError(err)
	}

	// The stored order is the intent's observed state: no order means the
	// intent never succeeded, a refunded order means the refund already
	// applied.
	state := models.IntentCreated

	switch {
	case err == nil && order.Status == models.OrderStatusRefunded:
		state = models.IntentRefunded
	case err == nil:
		state = models.IntentSucceeded
	}

	if _, terr := state.Transition(models.IntentRefunded); terr != nil {
		slog.Warn("Ignoring refund event",
			slog.String("intentId", intentID),
			slog.String("error", terr.Error()))

		return nil
	}

	if !order.Status.CanTransitionTo(models.OrderStatusRefunded) {
		// Cancelled orders are not refundable through this path.
		slog.Info("Ignoring refund for order not in a refundable status",
			slog.String("orderNumber", order.OrderNumber),
			slog.String("status", string(order.Status)))

		return nil
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, models.OrderStatusRefunded); err != nil {
		return errors.DatabaseError("Failed to mark order refunded").WithError(err)
	}

	slog.Info("Order refunded",
		slog.String("orderNumber", order.OrderNumber),
		slog.String("intentId", intentID))

	return nil
}
