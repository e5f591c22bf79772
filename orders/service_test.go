package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/gateway/pushinpay"
	"github.com/goliatone/go-checkout/security"
	goerrors "github.com/goliatone/go-errors"
)

var fixedNow = time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

var errStoreUnavailable = errors.New("store unavailable")

func TestCreateOrder_ValidatesInputAndProductOwnership(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.products.put(core.Product{ID: "prod_1", VendorID: "vendor_1", Active: true})
	fixture.products.put(core.Product{ID: "prod_off", VendorID: "vendor_1", Active: false})
	fixture.products.put(core.Product{ID: "prod_other", VendorID: "vendor_2", Active: true})

	base := CreateOrderInput{
		VendorID:      "vendor_1",
		ProductID:     "prod_1",
		CustomerEmail: "Buyer@Example.com",
		CustomerName:  "Buyer",
		AmountCents:   1990,
	}
	cases := []struct {
		name     string
		mutate   func(*CreateOrderInput)
		category goerrors.Category
	}{
		{"amount below minimum", func(in *CreateOrderInput) { in.AmountCents = 49 }, goerrors.CategoryValidation},
		{"missing email", func(in *CreateOrderInput) { in.CustomerEmail = "" }, goerrors.CategoryValidation},
		{"invalid email", func(in *CreateOrderInput) { in.CustomerEmail = "nope" }, goerrors.CategoryValidation},
		{"foreign currency", func(in *CreateOrderInput) { in.Currency = "usd" }, goerrors.CategoryValidation},
		{"inactive product", func(in *CreateOrderInput) { in.ProductID = "prod_off" }, goerrors.CategoryAuthz},
		{"foreign product", func(in *CreateOrderInput) { in.ProductID = "prod_other" }, goerrors.CategoryAuthz},
		{"unknown product", func(in *CreateOrderInput) { in.ProductID = "prod_missing" }, goerrors.CategoryAuthz},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			_, err := fixture.service.CreateOrder(context.Background(), in)
			if !core.HasCategory(err, tc.category) {
				t.Fatalf("expected %s error, got %v", tc.category, err)
			}
		})
	}

	result, err := fixture.service.CreateOrder(context.Background(), base)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.Order.Status != core.OrderStatusPending || result.Order.Currency != core.DefaultCurrency {
		t.Fatalf("unexpected order %+v", result.Order)
	}
	if result.Order.CustomerEmail != "buyer@example.com" {
		t.Fatalf("expected normalized email, got %q", result.Order.CustomerEmail)
	}
	if result.Session.OrderID != result.Order.ID || result.Session.Status != core.SessionStatusActive {
		t.Fatalf("unexpected session %+v", result.Session)
	}
}

func TestCreatePixCharge_AppliesSplitAndLinksCharge(t *testing.T) {
	fixture := newServiceFixture(t)
	order := fixture.seedPendingOrder(t, 1999)
	fixture.seedCredential(t, "vendor_1", "pp_token", "")

	charge, err := fixture.service.CreatePixCharge(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create pix charge: %v", err)
	}
	if charge.PixID != "pix_1" || charge.QRCode == "" {
		t.Fatalf("unexpected charge %+v", charge)
	}

	req := fixture.gateway.lastCreate
	if req.Token != "pp_token" || req.Environment != core.GatewayEnvironmentSandbox {
		t.Fatalf("unexpected gateway access %+v", req)
	}
	if len(req.SplitRules) != 1 || req.SplitRules[0].Value != 150 || req.SplitRules[0].AccountID != "acct_platform" {
		t.Fatalf("expected 7.5%% platform split, got %+v", req.SplitRules)
	}
	if req.WebhookURL != "https://checkout.test/webhooks/gateway" {
		t.Fatalf("unexpected webhook url %q", req.WebhookURL)
	}

	stored := fixture.orders.get(order.ID)
	if stored.GatewayPaymentID != "pix_1" {
		t.Fatalf("expected charge id linked to order, got %q", stored.GatewayPaymentID)
	}
	if !fixture.ledger.has("pix_1:created") {
		t.Fatalf("expected pix creation recorded in the ledger")
	}
	events := fixture.notifier.snapshot()
	if len(events) != 1 || events[0].EventName != core.OutboundPixGenerated {
		t.Fatalf("expected pix_generated notification, got %+v", events)
	}
}

func TestCreatePixCharge_Rejections(t *testing.T) {
	fixture := newServiceFixture(t)
	order := fixture.seedPendingOrder(t, 1990)

	_, err := fixture.service.CreatePixCharge(context.Background(), order.ID)
	if !core.HasCategory(err, goerrors.CategoryOperation) {
		t.Fatalf("expected missing credential to be rejected, got %v", err)
	}

	fixture.seedCredential(t, "vendor_1", "pp_token", core.GatewayEnvironmentProduction)
	fixture.orders.setStatus(order.ID, core.OrderStatusPaid)
	_, err = fixture.service.CreatePixCharge(context.Background(), order.ID)
	if !core.HasCategory(err, goerrors.CategoryConflict) {
		t.Fatalf("expected non-pending order to conflict, got %v", err)
	}

	if _, err := fixture.service.CreatePixCharge(context.Background(), "missing"); !core.IsNotFound(err) {
		t.Fatalf("expected unknown order to be not found, got %v", err)
	}
}

func TestGetPaymentStatus_PaidPollConvergesWithWebhookLedger(t *testing.T) {
	fixture := newServiceFixture(t)
	order := fixture.seedPendingOrder(t, 1990)
	fixture.seedCredential(t, "vendor_1", "pp_token", "")
	if _, err := fixture.service.CreatePixCharge(context.Background(), order.ID); err != nil {
		t.Fatalf("create pix charge: %v", err)
	}
	fixture.gateway.status = "paid"

	for range 2 {
		status, err := fixture.service.GetPaymentStatus(context.Background(), order.ID)
		if err != nil {
			t.Fatalf("get payment status: %v", err)
		}
		if status.GatewayStatus != "paid" || status.OrderStatus != core.OrderStatusPaid {
			t.Fatalf("unexpected status %+v", status)
		}
	}
	if !fixture.ledger.has("pix_1:paid") {
		t.Fatalf("expected the poll to use the webhook event id")
	}
	if fixture.orders.updateCalls() != 1 {
		t.Fatalf("expected a single transition, got %d updates", fixture.orders.updateCalls())
	}
	var approved int
	for _, event := range fixture.notifier.snapshot() {
		if event.EventName == core.OutboundPurchaseApproved {
			approved++
		}
	}
	if approved != 1 {
		t.Fatalf("expected one purchase_approved notification, got %d", approved)
	}
}

func TestGetPaymentStatus_RecoversTransitionAfterFailedUpdate(t *testing.T) {
	fixture := newServiceFixture(t)
	order := fixture.seedPendingOrder(t, 1990)
	fixture.seedCredential(t, "vendor_1", "pp_token", "")
	if _, err := fixture.service.CreatePixCharge(context.Background(), order.ID); err != nil {
		t.Fatalf("create pix charge: %v", err)
	}
	fixture.gateway.status = "paid"
	fixture.orders.failUpdates = 1

	if _, err := fixture.service.GetPaymentStatus(context.Background(), order.ID); !errors.Is(err, errStoreUnavailable) {
		t.Fatalf("expected first poll to surface the store error, got %v", err)
	}
	if !fixture.ledger.has("pix_1:paid") {
		t.Fatalf("expected the ledger row to be written before the failed update")
	}
	if got := fixture.orders.get(order.ID).Status; got != core.OrderStatusPending {
		t.Fatalf("expected order still PENDING after failed update, got %s", got)
	}

	for range 2 {
		status, err := fixture.service.GetPaymentStatus(context.Background(), order.ID)
		if err != nil {
			t.Fatalf("get payment status: %v", err)
		}
		if status.OrderStatus != core.OrderStatusPaid {
			t.Fatalf("expected poll to finish the transition, got %+v", status)
		}
	}
	if got := fixture.orders.get(order.ID); got.Status != core.OrderStatusPaid || got.PaidAt == nil {
		t.Fatalf("expected stored order PAID with paid_at, got %+v", got)
	}
	var approved int
	for _, event := range fixture.notifier.snapshot() {
		if event.EventName == core.OutboundPurchaseApproved {
			approved++
		}
	}
	if approved != 1 {
		t.Fatalf("expected one purchase_approved notification, got %d", approved)
	}
}

func TestGetPaymentStatus_WithoutChargeSkipsGateway(t *testing.T) {
	fixture := newServiceFixture(t)
	order := fixture.seedPendingOrder(t, 1990)

	status, err := fixture.service.GetPaymentStatus(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get payment status: %v", err)
	}
	if status.OrderStatus != core.OrderStatusPending || status.GatewayStatus != "" {
		t.Fatalf("unexpected status %+v", status)
	}
	if fixture.gateway.getCalls != 0 {
		t.Fatalf("expected no gateway call")
	}
}

func TestSweepAbandoned_MarksOnlyStalePendingCheckouts(t *testing.T) {
	fixture := newServiceFixture(t)
	stale := fixture.seedPendingOrder(t, 1990)
	paid := fixture.seedPendingOrder(t, 2990)
	fresh := fixture.seedPendingOrder(t, 3990)
	fixture.orders.setStatus(paid.ID, core.OrderStatusPaid)

	staleSession := fixture.sessions.add(stale.ID, fixedNow.Add(-45*time.Minute))
	paidSession := fixture.sessions.add(paid.ID, fixedNow.Add(-45*time.Minute))
	freshSession := fixture.sessions.add(fresh.ID, fixedNow.Add(-5*time.Minute))

	stats, err := fixture.service.SweepAbandoned(context.Background(), 0)
	if err != nil {
		t.Fatalf("sweep abandoned: %v", err)
	}
	if stats.Scanned != 2 || stats.Abandoned != 1 || stats.Converted != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := fixture.orders.get(stale.ID).Status; got != core.OrderStatusAbandoned {
		t.Fatalf("expected stale order ABANDONED, got %s", got)
	}
	if got := fixture.orders.get(paid.ID).Status; got != core.OrderStatusPaid {
		t.Fatalf("expected paid order untouched, got %s", got)
	}
	if got := fixture.sessions.get(staleSession).Status; got != core.SessionStatusAbandoned {
		t.Fatalf("expected stale session abandoned, got %s", got)
	}
	if got := fixture.sessions.get(paidSession).Status; got != core.SessionStatusConverted {
		t.Fatalf("expected paid session converted, got %s", got)
	}
	if got := fixture.sessions.get(freshSession).Status; got != core.SessionStatusActive {
		t.Fatalf("expected fresh session active, got %s", got)
	}

	eventID := fmt.Sprintf("abandoned-%s-%d", stale.ID, fixedNow.Unix())
	if !fixture.ledger.has(eventID) || fixture.ledger.total() != 1 {
		t.Fatalf("expected exactly one abandoned ledger event %s, got %v", eventID, fixture.ledger.ids())
	}
	payload := string(fixture.ledger.payload(eventID))
	if !strings.Contains(payload, `"reason":"inactivity"`) || !strings.Contains(payload, `"threshold_minutes":30`) {
		t.Fatalf("unexpected abandoned payload %s", payload)
	}
	events := fixture.notifier.snapshot()
	if len(events) != 1 || events[0].EventName != core.OutboundCheckoutAbandoned {
		t.Fatalf("expected checkout_abandoned notification, got %+v", events)
	}

	again, err := fixture.service.SweepAbandoned(context.Background(), 0)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.Scanned != 0 {
		t.Fatalf("expected second sweep to find nothing, got %+v", again)
	}
}

func TestSweepAbandoned_FinishesAfterLedgerFailure(t *testing.T) {
	fixture := newServiceFixture(t)
	order := fixture.seedPendingOrder(t, 1990)
	sessionID := fixture.sessions.add(order.ID, fixedNow.Add(-45*time.Minute))
	fixture.ledger.failRecords = 1

	if _, err := fixture.service.SweepAbandoned(context.Background(), 0); !errors.Is(err, errStoreUnavailable) {
		t.Fatalf("expected first sweep to report the ledger error, got %v", err)
	}
	if got := fixture.orders.get(order.ID).Status; got != core.OrderStatusAbandoned {
		t.Fatalf("expected order ABANDONED after first sweep, got %s", got)
	}
	if got := fixture.sessions.get(sessionID).Status; got != core.SessionStatusActive {
		t.Fatalf("expected session left active, got %s", got)
	}
	if len(fixture.notifier.snapshot()) != 0 {
		t.Fatalf("expected no notification before the abandonment is recorded")
	}

	stats, err := fixture.service.SweepAbandoned(context.Background(), 0)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if stats.Scanned != 1 || stats.Abandoned != 1 || stats.Converted != 0 {
		t.Fatalf("expected the second sweep to finish the abandonment, got %+v", stats)
	}
	if got := fixture.sessions.get(sessionID).Status; got != core.SessionStatusAbandoned {
		t.Fatalf("expected session abandoned, got %s", got)
	}
	if fixture.ledger.total() != 1 {
		t.Fatalf("expected one abandoned ledger event, got %v", fixture.ledger.ids())
	}
	events := fixture.notifier.snapshot()
	if len(events) != 1 || events[0].EventName != core.OutboundCheckoutAbandoned {
		t.Fatalf("expected one checkout_abandoned notification, got %+v", events)
	}
}

func TestHeartbeat(t *testing.T) {
	fixture := newServiceFixture(t)
	order := fixture.seedPendingOrder(t, 1990)
	sessionID := fixture.sessions.add(order.ID, fixedNow.Add(-time.Hour))

	active, err := fixture.service.Heartbeat(context.Background(), sessionID)
	if err != nil || !active {
		t.Fatalf("expected heartbeat to succeed, active=%v err=%v", active, err)
	}
	if got := fixture.sessions.get(sessionID).LastSeenAt; !got.Equal(fixedNow) {
		t.Fatalf("expected last seen to be now, got %s", got)
	}
	if _, err := fixture.service.Heartbeat(context.Background(), " "); err == nil {
		t.Fatalf("expected empty session id to fail")
	}
}

type serviceFixture struct {
	service     *Service
	orders      *memoryOrderStore
	products    *memoryProductStore
	sessions    *memorySessionStore
	credentials *memoryCredentialStore
	ledger      *memoryLedger
	gateway     *stubGateway
	notifier    *recordingNotifier
	secrets     *security.AppKeySecretProvider
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	secrets, err := security.NewAppKeySecretProvider([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("new secret provider: %v", err)
	}
	fixture := &serviceFixture{
		orders:      &memoryOrderStore{orders: map[string]core.Order{}},
		products:    &memoryProductStore{products: map[string]core.Product{}},
		sessions:    &memorySessionStore{sessions: map[string]core.CheckoutSession{}},
		credentials: &memoryCredentialStore{credentials: map[string]core.GatewayCredential{}},
		ledger:      &memoryLedger{rows: map[string]core.GatewayEventInput{}},
		gateway:     &stubGateway{status: "created"},
		notifier:    &recordingNotifier{},
		secrets:     secrets,
	}
	service, err := NewService(Dependencies{
		Orders:      fixture.orders,
		Products:    fixture.products,
		Sessions:    fixture.sessions,
		Credentials: fixture.credentials,
		Ledger:      fixture.ledger,
		Secrets:     secrets,
		Gateway:     fixture.gateway,
		Notifier:    fixture.notifier,
	}, Config{
		WebhookURL:         "https://checkout.test/webhooks/gateway",
		PlatformFeePercent: 7.5,
		PlatformAccountID:  "acct_platform",
	}, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.service = service
	return fixture
}

func (f *serviceFixture) seedPendingOrder(t *testing.T, amount int64) core.Order {
	t.Helper()
	order, err := f.orders.Create(context.Background(), core.Order{
		VendorID:    "vendor_1",
		ProductID:   "prod_1",
		AmountCents: amount,
		Status:      core.OrderStatusPending,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func (f *serviceFixture) seedCredential(t *testing.T, vendorID string, token string, environment string) {
	t.Helper()
	sealed, err := f.secrets.Encrypt(context.Background(), []byte(token))
	if err != nil {
		t.Fatalf("encrypt token: %v", err)
	}
	if err := f.credentials.Upsert(context.Background(), core.GatewayCredential{
		VendorID:       vendorID,
		EncryptedToken: sealed,
		Environment:    environment,
	}); err != nil {
		t.Fatalf("seed credential: %v", err)
	}
}

type stubGateway struct {
	mu         sync.Mutex
	lastCreate pushinpay.CreateChargeRequest
	status     string
	getCalls   int
}

func (g *stubGateway) CreateCharge(_ context.Context, req pushinpay.CreateChargeRequest) (pushinpay.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCreate = req
	return pushinpay.Charge{
		ID:           "pix_1",
		Status:       "created",
		Value:        req.ValueCents,
		QRCode:       "000201pix",
		QRCodeBase64: "data:image/png;base64,AAAA",
	}, nil
}

func (g *stubGateway) GetCharge(_ context.Context, token string, _ string, chargeID string) (pushinpay.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if token == "" {
		return pushinpay.Charge{}, core.NewError("unauthorized", goerrors.CategoryAuth, core.ErrorUnauthorized, map[string]any{"status": http.StatusUnauthorized})
	}
	return pushinpay.Charge{ID: chargeID, Status: g.status}, nil
}

type memoryOrderStore struct {
	mu          sync.Mutex
	orders      map[string]core.Order
	seq         int
	updates     int
	failUpdates int
}

func (s *memoryOrderStore) Create(_ context.Context, order core.Order) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	order.ID = fmt.Sprintf("order_%d", s.seq)
	if order.Status == "" {
		order.Status = core.OrderStatusPending
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *memoryOrderStore) Get(_ context.Context, id string) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return core.Order{}, core.NotFoundError("order", id)
	}
	return order, nil
}

func (s *memoryOrderStore) FindByGatewayReference(_ context.Context, reference string, _ string) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.GatewayPaymentID == reference {
			return order, nil
		}
	}
	return core.Order{}, core.OrderNotFoundError(reference)
}

func (s *memoryOrderStore) UpdateStatus(_ context.Context, id string, from core.OrderStatus, to core.OrderStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.failUpdates > 0 {
		s.failUpdates--
		return false, errStoreUnavailable
	}
	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	if to == core.OrderStatusPaid {
		order.PaidAt = &at
	}
	s.orders[id] = order
	return true, nil
}

func (s *memoryOrderStore) AttachCharge(_ context.Context, orderID string, chargeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orders[orderID]
	order.GatewayPaymentID = chargeID
	s.orders[orderID] = order
	return nil
}

func (s *memoryOrderStore) get(id string) core.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memoryOrderStore) setStatus(id string, status core.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orders[id]
	order.Status = status
	s.orders[id] = order
}

func (s *memoryOrderStore) updateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

type memoryProductStore struct {
	mu       sync.Mutex
	products map[string]core.Product
}

func (s *memoryProductStore) put(product core.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

func (s *memoryProductStore) Create(_ context.Context, product core.Product) (core.Product, error) {
	s.put(product)
	return product, nil
}

func (s *memoryProductStore) Get(_ context.Context, id string) (core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok {
		return core.Product{}, core.NotFoundError("product", id)
	}
	return product, nil
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]core.CheckoutSession
	seq      int
}

func (s *memorySessionStore) add(orderID string, lastSeen time.Time) string {
	session, _ := s.Create(context.Background(), core.CheckoutSession{OrderID: orderID, VendorID: "vendor_1", LastSeenAt: lastSeen})
	return session.ID
}

func (s *memorySessionStore) get(id string) core.CheckoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *memorySessionStore) Create(_ context.Context, session core.CheckoutSession) (core.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	session.ID = fmt.Sprintf("session_%d", s.seq)
	if session.Status == "" {
		session.Status = core.SessionStatusActive
	}
	s.sessions[session.ID] = session
	return session, nil
}

func (s *memorySessionStore) Touch(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.Status != core.SessionStatusActive {
		return false, nil
	}
	session.LastSeenAt = at
	s.sessions[id] = session
	return true, nil
}

func (s *memorySessionStore) ListStale(_ context.Context, cutoff time.Time, limit int) ([]core.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CheckoutSession
	for _, session := range s.sessions {
		if session.Status == core.SessionStatusActive && session.LastSeenAt.Before(cutoff) {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memorySessionStore) UpdateStatus(_ context.Context, id string, status core.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.sessions[id]
	session.Status = status
	s.sessions[id] = session
	return nil
}

type memoryCredentialStore struct {
	mu          sync.Mutex
	credentials map[string]core.GatewayCredential
}

func (s *memoryCredentialStore) Get(_ context.Context, vendorID string) (core.GatewayCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[vendorID]
	if !ok {
		return core.GatewayCredential{}, core.NotFoundError("gateway credential", vendorID)
	}
	return credential, nil
}

func (s *memoryCredentialStore) Upsert(_ context.Context, credential core.GatewayCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[credential.VendorID] = credential
	return nil
}

type memoryLedger struct {
	mu          sync.Mutex
	rows        map[string]core.GatewayEventInput
	failRecords int
}

func (l *memoryLedger) RecordIfNew(_ context.Context, input core.GatewayEventInput) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failRecords > 0 {
		l.failRecords--
		return false, errStoreUnavailable
	}
	if _, exists := l.rows[input.GatewayEventID]; exists {
		return false, nil
	}
	l.rows[input.GatewayEventID] = input
	return true, nil
}

func (l *memoryLedger) has(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.rows[id]
	return ok
}

func (l *memoryLedger) payload(id string) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[id].Payload
}

func (l *memoryLedger) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

func (l *memoryLedger) ids() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.rows))
	for id := range l.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []core.OrderEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event core.OrderEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) snapshot() []core.OrderEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.OrderEvent(nil), n.events...)
}
