package app

import (
	"context"
	"time"

	"github.com/jihongxing/influencer-giveaway/internal/clock"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
	"github.com/jihongxing/influencer-giveaway/internal/metrics"
	"go.uber.org/zap"
)

type PaymentRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetActivity(ctx context.Context, activityID string) (domain.Activity, error)
	// MarkOrderPaid transitions pending/reviewing -> paid in one conditional
	// update; false means the order was not in a payable state.
	MarkOrderPaid(ctx context.Context, orderID, transactionID string, now time.Time) (bool, error)
	MarkOrderReviewing(ctx context.Context, orderID string) (bool, error)
	RevertOrderToPending(ctx context.Context, orderID string) (bool, error)
	MarkOrderRefunded(ctx context.Context, orderID, reason string, now time.Time) (bool, error)
	MarkStockReleased(ctx context.Context, orderID string) (bool, error)
	CreatePayment(ctx context.Context, p domain.Payment) error
	GetPayment(ctx context.Context, paymentID string) (domain.Payment, error)
	// ReviewPayment settles a reviewing payment record; false when the
	// record already left the reviewing state.
	ReviewPayment(ctx context.Context, paymentID string, status domain.PaymentRecordStatus, reason string, now time.Time) (bool, error)
	SettlePaymentsForOrder(ctx context.Context, orderID, transactionID string, now time.Time) error
	MarkPaymentsRefunded(ctx context.Context, orderID string, now time.Time) error
}

// ShipmentDispatcher hands a paid order to the shipping collaborator. The
// call is fire-and-forget: a failure never unwinds the payment transition.
type ShipmentDispatcher interface {
	Dispatch(ctx context.Context, orderID string) error
}

const dispatchTimeout = 30 * time.Second

// PaymentService reconciles gateway and manual confirmations against order
// and stock state exactly once.
type PaymentService struct {
	repo       PaymentRepository
	stock      StockLedger
	dispatcher ShipmentDispatcher
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewPaymentService(repo PaymentRepository, stock StockLedger, dispatcher ShipmentDispatcher, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		repo:       repo,
		stock:      stock,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger,
		metrics:    m,
	}
}

// ConfirmPayment consumes a gateway success signal. Repeated deliveries of
// the same confirmation are absorbed as no-ops.
func (s *PaymentService) ConfirmPayment(ctx context.Context, orderID, transactionID string) error {
	if transactionID == "" {
		return domain.ErrTransactionIDRequired
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	confirmed := false
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()
		ok, err := s.repo.MarkOrderPaid(txCtx, orderID, transactionID, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.repo.GetOrder(txCtx, orderID)
			if err != nil {
				return err
			}
			if current.PaymentStatus == domain.PaymentStatusPaid {
				// Duplicate webhook delivery.
				return nil
			}
			return domain.ErrOrderNotPayable
		}
		confirmed = true
		if err := s.repo.SettlePaymentsForOrder(txCtx, orderID, transactionID, now); err != nil {
			return err
		}
		// Audit-only: the stock decrement happened at reservation time.
		for _, ln := range order.Lines {
			if err := s.stock.Finalize(txCtx, orderID, ln.ItemID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if confirmed {
		s.metrics.PaymentsConfirmed.WithLabelValues("webhook").Inc()
		s.logger.Info("payment confirmed",
			zap.String("order_id", orderID),
			zap.String("transaction_id", transactionID),
		)
		s.dispatchShipment(orderID)
	} else {
		s.logger.Info("duplicate payment confirmation ignored",
			zap.String("order_id", orderID),
			zap.String("transaction_id", transactionID),
		)
	}
	return nil
}

// SubmitOfflinePayment records a payment proof for manual review. The order
// moves to reviewing; its reservation stays in place.
func (s *PaymentService) SubmitOfflinePayment(ctx context.Context, orderID, fanID, proof, method string) (domain.Payment, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Payment{}, err
	}
	if order.FanID != fanID {
		return domain.Payment{}, domain.ErrPermissionDenied
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return domain.Payment{}, domain.ErrOrderNotPayable
	}
	if method == "" {
		method = "offline"
	}

	payment := domain.Payment{
		ID:        newID(),
		OrderID:   orderID,
		Method:    method,
		Amount:    order.TotalAmount,
		Status:    domain.PaymentRecordReviewing,
		Proof:     proof,
		CreatedAt: s.clock.Now(),
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.MarkOrderReviewing(txCtx, orderID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrOrderNotPayable
		}
		return s.repo.CreatePayment(txCtx, payment)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// ReviewOfflinePayment lets the activity's influencer approve or reject a
// submitted proof. Approval follows the webhook transition; rejection
// reverts the order to pending and must not release stock, because the fan
// may still pay within the window.
func (s *PaymentService) ReviewOfflinePayment(ctx context.Context, paymentID, reviewerID string, approve bool, reason string) error {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	order, err := s.repo.GetOrder(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	activity, err := s.repo.GetActivity(ctx, order.ActivityID)
	if err != nil {
		return err
	}
	if reviewerID != activity.InfluencerID {
		return domain.ErrPermissionDenied
	}

	if approve {
		return s.approveOfflinePayment(ctx, payment, order)
	}
	return s.rejectOfflinePayment(ctx, payment, reason)
}

func (s *PaymentService) approveOfflinePayment(ctx context.Context, payment domain.Payment, order domain.Order) error {
	approved := false
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()
		ok, err := s.repo.ReviewPayment(txCtx, payment.ID, domain.PaymentRecordPaid, "", now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.repo.GetPayment(txCtx, payment.ID)
			if err != nil {
				return err
			}
			if current.Status == domain.PaymentRecordPaid {
				// Duplicate review.
				return nil
			}
			return domain.ErrPaymentNotReviewing
		}

		transactionID := payment.TransactionID
		if transactionID == "" {
			transactionID = "offline:" + payment.ID
		}
		paid, err := s.repo.MarkOrderPaid(txCtx, payment.OrderID, transactionID, now)
		if err != nil {
			return err
		}
		if !paid {
			current, err := s.repo.GetOrder(txCtx, payment.OrderID)
			if err != nil {
				return err
			}
			if current.PaymentStatus != domain.PaymentStatusPaid {
				return domain.ErrOrderNotPayable
			}
			return nil
		}
		approved = true
		for _, ln := range order.Lines {
			if err := s.stock.Finalize(txCtx, payment.OrderID, ln.ItemID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if approved {
		s.metrics.PaymentsConfirmed.WithLabelValues("review").Inc()
		s.logger.Info("offline payment approved",
			zap.String("payment_id", payment.ID),
			zap.String("order_id", payment.OrderID),
		)
		s.dispatchShipment(payment.OrderID)
	}
	return nil
}

func (s *PaymentService) rejectOfflinePayment(ctx context.Context, payment domain.Payment, reason string) error {
	if reason == "" {
		reason = "payment proof rejected"
	}
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.ReviewPayment(txCtx, payment.ID, domain.PaymentRecordRejected, reason, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.repo.GetPayment(txCtx, payment.ID)
			if err != nil {
				return err
			}
			if current.Status == domain.PaymentRecordRejected {
				return nil
			}
			return domain.ErrPaymentNotReviewing
		}
		// The order stays payable; the reservation is NOT released.
		if _, err := s.repo.RevertOrderToPending(txCtx, payment.OrderID); err != nil {
			return err
		}
		s.logger.Info("offline payment rejected",
			zap.String("payment_id", payment.ID),
			zap.String("order_id", payment.OrderID),
			zap.String("reason", reason),
		)
		return nil
	})
}

// Refund is permitted only for paid orders that have not shipped. Stock is
// credited back exactly once, guarded by the order's released flag.
func (s *PaymentService) Refund(ctx context.Context, orderID, actorID, reason string) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if actorID != order.FanID {
		activity, err := s.repo.GetActivity(ctx, order.ActivityID)
		if err != nil {
			return err
		}
		if actorID != activity.InfluencerID {
			return domain.ErrPermissionDenied
		}
	}
	if order.PaymentStatus == domain.PaymentStatusRefunded {
		return domain.ErrAlreadyRefunded
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		return domain.ErrOrderNotPaid
	}
	if order.OrderStatus == domain.OrderStatusShipped || order.OrderStatus == domain.OrderStatusDelivered {
		return domain.ErrOrderAlreadyShipped
	}
	if reason == "" {
		reason = "refund requested"
	}

	refunded := false
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()
		ok, err := s.repo.MarkOrderRefunded(txCtx, orderID, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.repo.GetOrder(txCtx, orderID)
			if err != nil {
				return err
			}
			switch {
			case current.PaymentStatus == domain.PaymentStatusRefunded:
				return domain.ErrAlreadyRefunded
			case current.OrderStatus == domain.OrderStatusShipped,
				current.OrderStatus == domain.OrderStatusDelivered:
				return domain.ErrOrderAlreadyShipped
			default:
				return domain.ErrOrderNotPaid
			}
		}
		refunded = true
		if err := s.repo.MarkPaymentsRefunded(txCtx, orderID, now); err != nil {
			return err
		}
		released, err := s.repo.MarkStockReleased(txCtx, orderID)
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
		return nil
	})
	if err != nil {
		return err
	}
	if refunded {
		s.metrics.Refunds.Inc()
		s.logger.Info("order refunded",
			zap.String("order_id", orderID),
			zap.String("reason", reason),
		)
	}
	return nil
}

func (s *PaymentService) dispatchShipment(orderID string) {
	if s.dispatcher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := s.dispatcher.Dispatch(ctx, orderID); err != nil {
			// Shipment creation can be retried manually; the payment stands.
			s.logger.Error("shipment dispatch failed",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
		}
	}()
}
