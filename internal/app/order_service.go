package app

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/jihongxing/influencer-giveaway/internal/clock"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
	"github.com/jihongxing/influencer-giveaway/internal/metrics"
	"go.uber.org/zap"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	GetActivity(ctx context.Context, activityID string) (domain.Activity, error)
	// IncrementClaimCount bumps the per-(activity,fan) counter with the
	// limit guard inside the update itself; false means the limit was hit.
	IncrementClaimCount(ctx context.Context, activityID, fanID string, max int) (bool, error)
	DecrementClaimCount(ctx context.Context, activityID, fanID string) error
	ClaimCount(ctx context.Context, activityID, fanID string) (int, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error)
	// MarkCancelled performs the terminal transition only when the order is
	// still pending and its payment status is one of from, making every
	// cancellation naturally idempotent.
	MarkCancelled(ctx context.Context, orderID, reason string, now time.Time, from []domain.PaymentStatus) (bool, error)
	// MarkStockReleased flips the released flag; false means another caller
	// already credited this order's stock back.
	MarkStockReleased(ctx context.Context, orderID string) (bool, error)
}

type OrderFilter struct {
	FanID      string
	ActivityID string
	Status     domain.OrderStatus
	Limit      int
	Offset     int
}

// FeePolicy is the unified cost model for single- and multi-item orders.
type FeePolicy struct {
	PackagingFeePerUnit float64
	DefaultBaseShipping float64
	PlatformFeePercent  float64
}

// ClaimLimitError carries the current count and cap for the UI.
type ClaimLimitError struct {
	CurrentCount int
	MaxLimit     int
}

func (e *ClaimLimitError) Error() string {
	return fmt.Sprintf("claim limit exceeded: %d of %d", e.CurrentCount, e.MaxLimit)
}

func (e *ClaimLimitError) Is(target error) bool {
	return target == domain.ErrClaimLimitExceeded
}

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

type OrderService struct {
	repo          OrderRepository
	stock         StockLedger
	clock         clock.Clock
	logger        *zap.Logger
	metrics       *metrics.Metrics
	fees          FeePolicy
	paymentWindow time.Duration
}

const defaultPaymentWindow = 15 * time.Minute

type OrderServiceOption func(*OrderService)

// WithPaymentWindow overrides how long an unpaid order keeps its reservation.
func WithPaymentWindow(d time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if d > 0 {
			s.paymentWindow = d
		}
	}
}

func NewOrderService(repo OrderRepository, stock StockLedger, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics, fees FeePolicy, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:          repo,
		stock:         stock,
		clock:         clk,
		logger:        logger,
		metrics:       m,
		fees:          fees,
		paymentWindow: defaultPaymentWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type OrderLineInput struct {
	ItemID   string
	Quantity int
}

type CreateOrderInput struct {
	FanID        string
	FanPhone     string
	Lines        []OrderLineInput
	Address      domain.ShippingAddress
	ContactName  string
	ContactPhone string
}

// CreateOrder validates the claim, enforces the per-activity cap atomically,
// reserves stock item by item with explicit reverse-order compensation, and
// persists the order pending payment. One code path serves single- and
// multi-item claims.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if len(in.Lines) == 0 {
		return domain.Order{}, domain.ErrNoLineItems
	}
	if !phonePattern.MatchString(in.FanPhone) || !phonePattern.MatchString(in.ContactPhone) {
		return domain.Order{}, domain.ErrInvalidPhone
	}
	if !in.Address.Complete() {
		return domain.Order{}, domain.ErrInvalidAddress
	}
	for _, ln := range in.Lines {
		if ln.Quantity < 1 || ln.Quantity > domain.MaxQuantityPerLine {
			return domain.Order{}, domain.ErrInvalidQuantity
		}
	}

	items := make(map[string]domain.Item, len(in.Lines))
	activityID := ""
	for _, ln := range in.Lines {
		item, err := s.repo.GetItem(ctx, ln.ItemID)
		if err != nil {
			return domain.Order{}, err
		}
		if activityID == "" {
			activityID = item.ActivityID
		} else if item.ActivityID != activityID {
			return domain.Order{}, domain.ErrMixedActivities
		}
		items[ln.ItemID] = item
	}

	ok, err := s.repo.IncrementClaimCount(ctx, activityID, in.FanID, domain.MaxClaimsPerActivity)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		count, countErr := s.repo.ClaimCount(ctx, activityID, in.FanID)
		if countErr != nil {
			count = domain.MaxClaimsPerActivity
		}
		return domain.Order{}, &ClaimLimitError{CurrentCount: count, MaxLimit: domain.MaxClaimsPerActivity}
	}

	// Saga: each reservation is an independent atomic decrement. On any
	// failure the succeeded ones are released in reverse order before the
	// error reaches the caller, so a partial reservation never leaks.
	reserved := make([]OrderLineInput, 0, len(in.Lines))
	for _, ln := range in.Lines {
		if err := s.stock.Reserve(ctx, ln.ItemID, ln.Quantity); err != nil {
			s.compensate(ctx, reserved)
			s.releaseClaim(ctx, activityID, in.FanID)
			return domain.Order{}, err
		}
		reserved = append(reserved, ln)
	}

	now := s.clock.Now()
	order := s.buildOrder(in, items, activityID, now)

	if err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.CreateOrder(txCtx, order)
	}); err != nil {
		s.compensate(ctx, reserved)
		s.releaseClaim(ctx, activityID, in.FanID)
		return domain.Order{}, err
	}

	s.metrics.OrdersCreated.Inc()
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("activity_id", activityID),
		zap.String("fan_id", in.FanID),
		zap.Int("lines", len(order.Lines)),
		zap.Float64("total_amount", order.TotalAmount),
	)
	return order, nil
}

func (s *OrderService) buildOrder(in CreateOrderInput, items map[string]domain.Item, activityID string, now time.Time) domain.Order {
	lines := make([]domain.LineItem, 0, len(in.Lines))
	maxBaseShipping := 0.0
	totalPackaging := 0.0
	for _, ln := range in.Lines {
		item := items[ln.ItemID]
		base := item.BaseShippingCost
		if base <= 0 {
			base = s.fees.DefaultBaseShipping
		}
		packaging := s.fees.PackagingFeePerUnit * float64(ln.Quantity)
		if base > maxBaseShipping {
			maxBaseShipping = base
		}
		totalPackaging += packaging
		lines = append(lines, domain.LineItem{
			ItemID:           ln.ItemID,
			Label:            item.Label,
			Quantity:         ln.Quantity,
			BaseShippingCost: base,
			PackagingFee:     packaging,
		})
	}

	shippingCost := maxBaseShipping + totalPackaging
	platformFee := roundCents(shippingCost * s.fees.PlatformFeePercent / 100)
	total := roundCents(shippingCost + platformFee)

	return domain.Order{
		ID:               newID(),
		ActivityID:       activityID,
		FanID:            in.FanID,
		Lines:            lines,
		FanPhone:         in.FanPhone,
		Address:          in.Address,
		ContactName:      in.ContactName,
		ContactPhone:     in.ContactPhone,
		BaseShippingCost: maxBaseShipping,
		PackagingFee:     totalPackaging,
		ShippingCost:     shippingCost,
		PlatformFee:      platformFee,
		TotalAmount:      total,
		PaymentStatus:    domain.PaymentStatusPending,
		OrderStatus:      domain.OrderStatusPending,
		PaymentDeadline:  now.Add(s.paymentWindow),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *OrderService) compensate(ctx context.Context, reserved []OrderLineInput) {
	for i := len(reserved) - 1; i >= 0; i-- {
		ln := reserved[i]
		_ = s.stock.ReleaseWithRetry(ctx, ln.ItemID, ln.Quantity)
	}
}

func (s *OrderService) releaseClaim(ctx context.Context, activityID, fanID string) {
	if err := s.repo.DecrementClaimCount(ctx, activityID, fanID); err != nil {
		s.logger.Error("failed to roll back claim counter",
			zap.String("activity_id", activityID),
			zap.String("fan_id", fanID),
			zap.Error(err),
		)
	}
}

// CancelOrder is permitted for the fan or the activity's influencer while the
// order is pending and unpaid. Cancelling an already-cancelled order is a
// no-op; stock is credited back at most once via the released flag.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID, reason string) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, order, actorID); err != nil {
		return err
	}
	if order.OrderStatus == domain.OrderStatusCancelled {
		return nil
	}
	if order.PaymentStatus == domain.PaymentStatusPaid || order.OrderStatus != domain.OrderStatusPending {
		return domain.ErrOrderNotCancellable
	}
	if reason == "" {
		reason = "cancelled by user"
	}
	cancelled, err := s.cancel(ctx, order, reason, []domain.PaymentStatus{
		domain.PaymentStatusPending,
		domain.PaymentStatusReviewing,
	})
	if err != nil {
		return err
	}
	if !cancelled {
		// Lost the race: re-read to tell a concurrent cancel from a payment.
		current, err := s.repo.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if current.OrderStatus == domain.OrderStatusCancelled {
			return nil
		}
		return domain.ErrOrderNotCancellable
	}
	s.metrics.OrdersCancelled.WithLabelValues("user").Inc()
	return nil
}

// ExpireOrder cancels one overdue unpaid order. Safe to call concurrently
// with itself or with a manual cancel: the transition and the stock credit
// are both guarded, so the second caller no-ops.
func (s *OrderService) ExpireOrder(ctx context.Context, orderID string, now time.Time) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.PaymentDeadline.Before(now) {
		return nil
	}
	cancelled, err := s.cancel(ctx, order, "payment window elapsed", []domain.PaymentStatus{
		domain.PaymentStatusPending,
	})
	if err != nil {
		return err
	}
	if cancelled {
		s.metrics.OrdersCancelled.WithLabelValues("timeout").Inc()
		s.logger.Info("expired order cancelled",
			zap.String("order_id", orderID),
			zap.Time("payment_deadline", order.PaymentDeadline),
		)
	}
	return nil
}

func (s *OrderService) cancel(ctx context.Context, order domain.Order, reason string, from []domain.PaymentStatus) (bool, error) {
	transitioned := false
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.MarkCancelled(txCtx, order.ID, reason, s.clock.Now(), from)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		transitioned = true
		released, err := s.repo.MarkStockReleased(txCtx, order.ID)
		if err != nil {
			return err
		}
		if released {
			for _, ln := range order.Lines {
				if err := s.stock.Release(txCtx, ln.ItemID, ln.Quantity); err != nil {
					return err
				}
			}
		}
		return s.repo.DecrementClaimCount(txCtx, order.ActivityID, order.FanID)
	})
	if err != nil {
		return false, err
	}
	return transitioned, nil
}

// ExpiredPending lists overdue unpaid order ids for the timeout sweep.
func (s *OrderService) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return s.repo.ListExpiredPending(ctx, now, limit)
}

func (s *OrderService) GetOrder(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.authorize(ctx, order, actorID); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.ListOrders(ctx, filter)
}

func (s *OrderService) authorize(ctx context.Context, order domain.Order, actorID string) error {
	if actorID == order.FanID {
		return nil
	}
	activity, err := s.repo.GetActivity(ctx, order.ActivityID)
	if err != nil {
		return err
	}
	if actorID != activity.InfluencerID {
		return domain.ErrPermissionDenied
	}
	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
