package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-core/internal/address"
	"storefront-core/internal/cart"
	"storefront-core/internal/identity"
	"storefront-core/internal/orders"
	"storefront-core/internal/payment"
)

type testEnv struct {
	router    *chi.Mux
	carts     *cart.MemoryStore
	addresses *address.MemoryStore
	orders    *orders.MemoryStore
	cookies   []*http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	resolver := identity.NewResolver("test-secret", 7*24*time.Hour, 30*24*time.Hour)

	env := &testEnv{
		router:    NewRouter(),
		carts:     cart.NewMemoryStore(),
		addresses: address.NewMemoryStore(),
		orders:    orders.NewMemoryStore(),
	}
	(&CartHandler{Store: env.carts, Resolver: resolver}).Register(env.router)
	(&AddressHandler{Store: env.addresses, Resolver: resolver}).Register(env.router)
	(&OrdersHandler{
		Store:    env.orders,
		Cart:     env.carts,
		Resolver: resolver,
		Builder: payment.NewBuilder(payment.Config{
			MerchantCode: "MERCH01",
			SecretKey:    "topsecret",
		}),
	}).Register(env.router)
	return env
}

// do issues a request with the session cookies collected so far, browser
// style, and folds any Set-Cookie responses back into the jar.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	for _, c := range e.cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)

	for _, c := range w.Result().Cookies() {
		e.storeCookie(c)
	}
	return w
}

func (e *testEnv) storeCookie(c *http.Cookie) {
	for i, cur := range e.cookies {
		if cur.Name == c.Name {
			if c.MaxAge < 0 {
				e.cookies = append(e.cookies[:i], e.cookies[i+1:]...)
			} else {
				e.cookies[i] = c
			}
			return
		}
	}
	if c.MaxAge >= 0 {
		e.cookies = append(e.cookies, c)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestCartGuestTokenPersistence(t *testing.T) {
	env := newTestEnv(t)

	// First mutation without any cookie: exactly one Set-Cookie, for the
	// cart guest token.
	w := env.do(t, http.MethodPut, "/cart/items", SetItemReq{
		ProductID: "p1", Name: "Lamp", PriceCents: 10000, Quantity: 2, StoreID: "store-a",
	})
	require.Equal(t, http.StatusOK, w.Code)
	set := w.Result().Cookies()
	require.Len(t, set, 1)
	assert.Equal(t, "sf_cart_guest", set[0].Name)

	// Second request presents the cookie: same session, no new cookie, one
	// cart with both items.
	w = env.do(t, http.MethodPut, "/cart/items", SetItemReq{
		ProductID: "p2", Name: "Rug", PriceCents: 5000, Quantity: 1, StoreID: "store-b",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())

	resp := decode[CartItemsResp](t, w)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 25000, resp.SubtotalCents)
}

func TestCartZeroQuantityRemoves(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPut, "/cart/items", SetItemReq{ProductID: "p1", PriceCents: 100, Quantity: 2, StoreID: "s"})
	env.do(t, http.MethodPut, "/cart/items", SetItemReq{ProductID: "p2", PriceCents: 100, Quantity: 1, StoreID: "s"})

	w := env.do(t, http.MethodPut, "/cart/items", SetItemReq{ProductID: "p1", PriceCents: 100, Quantity: 0, StoreID: "s"})
	resp := decode[CartItemsResp](t, w)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "p2", resp.Items[0].ProductID)
}

func TestAddressRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	fields := address.Fields{
		Name: "Mona Hassan", Email: "mona@example.com", Phone: "0100000000",
		Address: "12 Tahrir St", Building: 4, Floor: 2, Flat: 7, District: "Dokki",
	}
	w := env.do(t, http.MethodPost, "/address", fields)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/address", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[address.Address](t, w)
	assert.Equal(t, "Mona Hassan", got.Name)
	assert.Equal(t, address.FixedCity, got.City)

	// Missing required field is a 400.
	bad := fields
	bad.Phone = ""
	w = env.do(t, http.MethodPost, "/address", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGuestCheckoutScenario(t *testing.T) {
	env := newTestEnv(t)

	// Guest adds an item: cart line total 20000.
	w := env.do(t, http.MethodPut, "/cart/items", SetItemReq{
		ProductID: "p1", Name: "Lamp", PriceCents: 10000, Quantity: 2, StoreID: "store-a",
	})
	resp := decode[CartItemsResp](t, w)
	require.Equal(t, 20000, resp.SubtotalCents)

	// Submits an address.
	w = env.do(t, http.MethodPost, "/address", address.Fields{
		Name: "Mona Hassan", Email: "mona@example.com", Phone: "0100000000",
		Address: "12 Tahrir St", Building: 4, Floor: 2, Flat: 7, District: "Dokki",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Creates the order: stored total = subtotal + shipping, both pending.
	w = env.do(t, http.MethodPost, "/orders", CreateOrderReq{
		Items: []orders.Item{
			{ProductID: "p1", Name: "Lamp", PriceCents: 10000, Quantity: 2, StoreID: "store-a"},
		},
		SubtotalCents: 20000,
		ShippingCents: 3000,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[orders.Order](t, w)
	assert.Equal(t, 23000, created.TotalCents)
	assert.Equal(t, orders.StatusPending, created.OrderStatus)
	assert.Equal(t, orders.PaymentPending, created.PaymentStatus)

	// Checkout cleared the session cart.
	w = env.do(t, http.MethodGet, "/cart", nil)
	c := decode[cart.Cart](t, w)
	assert.Empty(t, c.Items)

	// Gateway reports payment: only the payment status changes.
	w = env.do(t, http.MethodPost, "/payments/confirm", ConfirmPaymentReq{
		OrderID:       created.ID,
		PaymentStatus: orders.PaymentPaid,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[orders.Order](t, w)
	assert.Equal(t, orders.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, orders.StatusPending, got.OrderStatus)
	assert.Equal(t, 23000, got.TotalCents, "total untouched by status update")
	assert.Equal(t, created.Items, got.Items)
}

func TestOrderNotFoundForForeignActor(t *testing.T) {
	owner := newTestEnv(t)

	o := owner.do(t, http.MethodPost, "/orders", CreateOrderReq{
		Items:         []orders.Item{{ProductID: "p1", PriceCents: 100, Quantity: 1, StoreID: "s"}},
		SubtotalCents: 100,
	})
	created := decode[orders.Order](t, o)

	// A different browser session shares the stores but not the cookies.
	stranger := &testEnv{router: owner.router}

	w := stranger.do(t, http.MethodGet, "/orders/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	processing := orders.StatusProcessing
	w = stranger.do(t, http.MethodPost, "/orders/"+created.ID+"/status", UpdateStatusReq{OrderStatus: &processing})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIllegalTransitionIsConflict(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/orders", CreateOrderReq{
		Items:         []orders.Item{{ProductID: "p1", PriceCents: 100, Quantity: 1, StoreID: "s"}},
		SubtotalCents: 100,
	})
	created := decode[orders.Order](t, w)

	completed := orders.StatusCompleted
	w = env.do(t, http.MethodPost, "/orders/"+created.ID+"/status", UpdateStatusReq{OrderStatus: &completed})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestChargeRequestEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/orders", CreateOrderReq{
		Items: []orders.Item{
			{ProductID: "p1", Name: "Lamp", PriceCents: 10050, Quantity: 2, StoreID: "store-a"},
		},
		SubtotalCents: 20100,
	})
	created := decode[orders.Order](t, w)

	w = env.do(t, http.MethodPost, "/orders/"+created.ID+"/charge-request", nil)
	require.Equal(t, http.StatusOK, w.Code)
	req := decode[payment.ChargeRequest](t, w)
	assert.Equal(t, "MERCH01", req.MerchantCode)
	assert.Equal(t, created.OrderNumber, req.MerchantRefNum)
	assert.Empty(t, req.CustomerProfileID, "guest checkout has no profile id")
	require.Len(t, req.Items, 1)
	assert.Equal(t, "100.50", req.Items[0].Price)
	assert.NotEmpty(t, req.Signature)

	// Recomputed per call, deterministic.
	w = env.do(t, http.MethodPost, "/orders/"+created.ID+"/charge-request", nil)
	again := decode[payment.ChargeRequest](t, w)
	assert.Equal(t, req.Signature, again.Signature)
}

func TestStoreOrdersView(t *testing.T) {
	shopperA := newTestEnv(t)
	shopperB := &testEnv{router: shopperA.router}

	shopperA.do(t, http.MethodPost, "/orders", CreateOrderReq{
		Items:         []orders.Item{{ProductID: "p1", PriceCents: 100, Quantity: 1, StoreID: "store-a"}},
		SubtotalCents: 100,
	})
	shopperB.do(t, http.MethodPost, "/orders", CreateOrderReq{
		Items: []orders.Item{
			{ProductID: "p2", PriceCents: 200, Quantity: 1, StoreID: "store-a"},
			{ProductID: "p3", PriceCents: 300, Quantity: 1, StoreID: "store-b"},
		},
		SubtotalCents: 500,
	})

	w := shopperA.do(t, http.MethodGet, "/stores/store-a/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]orders.Order](t, w)
	assert.Len(t, list, 2, "seller view spans all shoppers")

	w = shopperA.do(t, http.MethodGet, "/stores/store-b/orders", nil)
	list = decode[[]orders.Order](t, w)
	assert.Len(t, list, 1)
}
