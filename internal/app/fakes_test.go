package app

import (
	"context"
	"sync"
	"time"

	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

// fakeStore is an in-memory stand-in for the Postgres repositories. Every
// mutation holds the mutex for its whole duration, mirroring the atomicity of
// the conditional updates the real layer uses.
type fakeStore struct {
	mu sync.Mutex

	activities map[string]*domain.Activity
	items      map[string]*domain.Item
	orders     map[string]*domain.Order
	claims     map[string]int
	payments   map[string]*domain.Payment
	reminders  map[string]domain.ShippingReminder
	pwErrors   map[string]*domain.PasswordErrorRecord

	reserveErr      map[string]error
	releaseFailures map[string]int
	createOrderErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		activities:      make(map[string]*domain.Activity),
		items:           make(map[string]*domain.Item),
		orders:          make(map[string]*domain.Order),
		claims:          make(map[string]int),
		payments:        make(map[string]*domain.Payment),
		reminders:       make(map[string]domain.ShippingReminder),
		pwErrors:        make(map[string]*domain.PasswordErrorRecord),
		reserveErr:      make(map[string]error),
		releaseFailures: make(map[string]int),
	}
}

func (f *fakeStore) addActivity(a domain.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := a
	f.activities[a.ID] = &cp
}

func (f *fakeStore) addItem(it domain.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := it
	f.items[it.ID] = &cp
}

func (f *fakeStore) addOrder(o domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := o
	f.orders[o.ID] = &cp
}

func (f *fakeStore) item(id string) domain.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.items[id]
}

func (f *fakeStore) order(id string) domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

func (f *fakeStore) claimCount(activityID, fanID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims[activityID+"|"+fanID]
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) ReserveQuantity(ctx context.Context, itemID string, qty int) (StockChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reserveErr[itemID]; err != nil {
		return StockChange{}, err
	}
	it, ok := f.items[itemID]
	if !ok {
		return StockChange{}, domain.ErrItemNotFound
	}
	if it.RemainingQuantity < qty {
		return StockChange{}, domain.ErrInsufficientStock
	}
	prev := it.RemainingQuantity
	it.RemainingQuantity -= qty
	return StockChange{
		ItemID:     itemID,
		ActivityID: it.ActivityID,
		Previous:   prev,
		Remaining:  it.RemainingQuantity,
	}, nil
}

func (f *fakeStore) ReleaseQuantity(ctx context.Context, itemID string, qty int) (StockChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.releaseFailures[itemID]; n > 0 {
		f.releaseFailures[itemID] = n - 1
		return StockChange{}, context.DeadlineExceeded
	}
	it, ok := f.items[itemID]
	if !ok {
		return StockChange{}, domain.ErrItemNotFound
	}
	prev := it.RemainingQuantity
	it.RemainingQuantity += qty
	if it.RemainingQuantity > it.OriginalQuantity {
		it.RemainingQuantity = it.OriginalQuantity
	}
	return StockChange{
		ItemID:     itemID,
		ActivityID: it.ActivityID,
		Previous:   prev,
		Remaining:  it.RemainingQuantity,
	}, nil
}

func (f *fakeStore) MarkLineFinalized(ctx context.Context, orderID, itemID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	for i := range o.Lines {
		if o.Lines[i].ItemID == itemID && o.Lines[i].FinalizedAt == nil {
			t := at
			o.Lines[i].FinalizedAt = &t
		}
	}
	return nil
}

func (f *fakeStore) AdjustAvailableItems(ctx context.Context, activityID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[activityID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	a.AvailableItemsCount += delta
	if a.AvailableItemsCount < 0 {
		a.AvailableItemsCount = 0
	}
	return nil
}

func (f *fakeStore) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return *it, nil
}

func (f *fakeStore) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[activityID]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	return *a, nil
}

func (f *fakeStore) IncrementClaimCount(ctx context.Context, activityID, fanID string, max int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := activityID + "|" + fanID
	if f.claims[key] >= max {
		return false, nil
	}
	f.claims[key]++
	return true, nil
}

func (f *fakeStore) DecrementClaimCount(ctx context.Context, activityID, fanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := activityID + "|" + fanID
	if f.claims[key] > 0 {
		f.claims[key]--
	}
	return nil
}

func (f *fakeStore) ClaimCount(ctx context.Context, activityID, fanID string) (int, error) {
	return f.claimCount(activityID, fanID), nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, order domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createOrderErr != nil {
		return f.createOrderErr
	}
	cp := order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeStore) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return *o, nil
}

func (f *fakeStore) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.FanID != filter.FanID {
			continue
		}
		if filter.ActivityID != "" && o.ActivityID != filter.ActivityID {
			continue
		}
		if filter.Status != "" && o.OrderStatus != filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, o := range f.orders {
		if o.PaymentStatus == domain.PaymentStatusPending &&
			o.OrderStatus == domain.OrderStatusPending &&
			o.PaymentDeadline.Before(now) {
			ids = append(ids, id)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (f *fakeStore) MarkCancelled(ctx context.Context, orderID, reason string, now time.Time, from []domain.PaymentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.OrderStatus != domain.OrderStatusPending {
		return false, nil
	}
	allowed := false
	for _, st := range from {
		if o.PaymentStatus == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusCancelled
	o.OrderStatus = domain.OrderStatusCancelled
	o.CancelReason = reason
	t := now
	o.CancelledAt = &t
	return true, nil
}

func (f *fakeStore) MarkStockReleased(ctx context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.StockReleased {
		return false, nil
	}
	o.StockReleased = true
	return true, nil
}

func (f *fakeStore) MarkOrderPaid(ctx context.Context, orderID, transactionID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, nil
	}
	if o.PaymentStatus != domain.PaymentStatusPending && o.PaymentStatus != domain.PaymentStatusReviewing {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusPaid
	o.TransactionID = transactionID
	t := now
	o.PaidAt = &t
	return true, nil
}

func (f *fakeStore) MarkOrderReviewing(ctx context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.PaymentStatus != domain.PaymentStatusPending || o.OrderStatus != domain.OrderStatusPending {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusReviewing
	return true, nil
}

func (f *fakeStore) RevertOrderToPending(ctx context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.PaymentStatus != domain.PaymentStatusReviewing {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusPending
	return true, nil
}

func (f *fakeStore) MarkOrderRefunded(ctx context.Context, orderID, reason string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, nil
	}
	if o.PaymentStatus != domain.PaymentStatusPaid || o.OrderStatus != domain.OrderStatusPending {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusRefunded
	o.OrderStatus = domain.OrderStatusRefunded
	o.CancelReason = reason
	t := now
	o.RefundedAt = &t
	return true, nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, p domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return *p, nil
}

func (f *fakeStore) ReviewPayment(ctx context.Context, paymentID string, status domain.PaymentRecordStatus, reason string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok || p.Status != domain.PaymentRecordReviewing {
		return false, nil
	}
	p.Status = status
	p.RejectReason = reason
	t := now
	p.ReviewedAt = &t
	return true, nil
}

func (f *fakeStore) SettlePaymentsForOrder(ctx context.Context, orderID, transactionID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrderID == orderID && p.Status == domain.PaymentRecordReviewing {
			p.Status = domain.PaymentRecordPaid
			if p.TransactionID == "" {
				p.TransactionID = transactionID
			}
			t := now
			p.ReviewedAt = &t
		}
	}
	return nil
}

func (f *fakeStore) MarkPaymentsRefunded(ctx context.Context, orderID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrderID == orderID && p.Status == domain.PaymentRecordPaid {
			p.Status = domain.PaymentRecordRefunded
		}
	}
	return nil
}

func (f *fakeStore) ListOverdueShipments(ctx context.Context, paidBefore time.Time, limit int) ([]OverdueShipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []OverdueShipment
	for _, o := range f.orders {
		if o.PaymentStatus != domain.PaymentStatusPaid || o.OrderStatus != domain.OrderStatusPending {
			continue
		}
		if o.PaidAt == nil || !o.PaidAt.Before(paidBefore) {
			continue
		}
		influencerID := ""
		if a, ok := f.activities[o.ActivityID]; ok {
			influencerID = a.InfluencerID
		}
		out = append(out, OverdueShipment{
			OrderID:      o.ID,
			ActivityID:   o.ActivityID,
			InfluencerID: influencerID,
			PaidAt:       *o.PaidAt,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) CreateShippingReminder(ctx context.Context, reminder domain.ShippingReminder) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reminder.OrderID + "|" + reminder.ReminderType
	if _, exists := f.reminders[key]; exists {
		return false, nil
	}
	f.reminders[key] = reminder
	return true, nil
}

func (f *fakeStore) GetPasswordErrors(ctx context.Context, activityID, fanID string) (*domain.PasswordErrorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.pwErrors[activityID+"|"+fanID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) IncrementPasswordErrors(ctx context.Context, activityID, fanID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := activityID + "|" + fanID
	rec, ok := f.pwErrors[key]
	if !ok {
		rec = &domain.PasswordErrorRecord{ActivityID: activityID, FanID: fanID}
		f.pwErrors[key] = rec
	}
	rec.ErrorCount++
	rec.LastErrorAt = time.Now()
	return rec.ErrorCount, nil
}

func (f *fakeStore) ClearPasswordErrors(ctx context.Context, activityID, fanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pwErrors, activityID+"|"+fanID)
	return nil
}

func (f *fakeStore) CreateActivity(ctx context.Context, activity domain.Activity) error {
	f.addActivity(activity)
	return nil
}

func (f *fakeStore) CreateItem(ctx context.Context, item domain.Item) error {
	f.addItem(item)
	return nil
}

func (f *fakeStore) ListItemsByActivity(ctx context.Context, activityID string) ([]domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Item
	for _, it := range f.items {
		if it.ActivityID == activityID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) CountActiveOrdersForItem(ctx context.Context, itemID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, o := range f.orders {
		if o.PaymentStatus == domain.PaymentStatusCancelled {
			continue
		}
		for _, ln := range o.Lines {
			if ln.ItemID == itemID {
				count++
			}
		}
	}
	return count, nil
}

func (f *fakeStore) DeleteItem(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[itemID]; !ok {
		return domain.ErrItemNotFound
	}
	delete(f.items, itemID)
	return nil
}
