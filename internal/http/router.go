package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopline/storefront/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Wishlist *WishlistHandler
	Orders   *OrdersHandler
	Checkout *CheckoutHandler
}

func NewRouter(h Handlers, m *metrics.Metrics, log *slog.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(InstrumentMiddleware(log, m))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.Products.List)
		r.Get("/products/{id}", h.Products.Get)

		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Patch("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", h.Wishlist.Get)
				r.Put("/items/{product_id}", h.Wishlist.Add)
				r.Get("/items/{product_id}", h.Wishlist.Contains)
				r.Delete("/items/{product_id}", h.Wishlist.Remove)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.List)
				r.Get("/{id}", h.Orders.Get)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/authorize", h.Checkout.Authorize)
				r.Post("/confirm", h.Checkout.Confirm)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(RoleAdmin))
				r.Post("/products", h.Products.Create)
				r.Patch("/products/{id}", h.Products.Update)
				r.Get("/orders/count", h.Orders.Count)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
