/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Identity:   X-User-ID header -> request context

IDENTITY:
  The acting user travels with the request, never in process globals. The
  X-User-ID header is the whole story: middleware copies it into the request
  context and handlers read it back with ActorID. In production a verified
  JWT subject claim takes the header's place; the context plumbing stays.

ROUTE GROUPS:
  /api/cars/*       Listings, availability, calendar
  /api/users/*      Accounts, wallet, notifications, reviews, recovery
  /api/bookings/*   Hold / confirm / abandon settlement flow, reviews

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/driveway/rental-engine/rental"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorID returns the acting user carried by the request context, or "".
func ActorID(ctx context.Context) rental.UserID {
	actor, _ := ctx.Value(actorKey).(rental.UserID)
	return actor
}

// WithActor returns a context carrying the acting user. Exposed for tests.
func WithActor(ctx context.Context, id rental.UserID) context.Context {
	return context.WithValue(ctx, actorKey, id)
}

// identity maps the X-User-ID header into the request context.
func identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-User-ID"); id != "" {
			r = r.WithContext(WithActor(r.Context(), rental.UserID(id)))
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))
	r.Use(identity)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Listing routes
		r.Route("/cars", func(r chi.Router) {
			r.Get("/", h.ListCars)
			r.Post("/", h.CreateCar)
			r.Get("/{id}", h.GetCar)
			r.Put("/{id}", h.UpdateCar)
			r.Post("/{id}/retire", h.RetireCar)
			r.Get("/{id}/availability", h.CheckAvailability)
			r.Get("/{id}/blocked", h.ListBlocked)
			r.Post("/{id}/blocked", h.BlockDates)
			r.Delete("/{id}/blocked", h.UnblockDates)
			r.Get("/{id}/bookings", h.ListCarBookings)
		})

		// Account routes
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/{id}/balance", h.GetBalance)
			r.Post("/{id}/topup", h.TopUp)
			r.Get("/{id}/bookings", h.ListUserBookings)
			r.Get("/{id}/notifications", h.ListNotifications)
			r.Get("/{id}/reviews", h.ListReviewsReceived)
			r.Get("/{id}/recovery", h.GetRecoveryQuestions)
			r.Post("/{id}/recovery", h.SetRecovery)
			r.Post("/{id}/recovery/verify", h.VerifyRecovery)
		})

		// Settlement routes
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/hold", h.CreateHold)
			r.Post("/confirm", h.ConfirmBooking)
			r.Post("/abandon", h.AbandonHold)
			r.Get("/{id}", h.GetBooking)
			r.Post("/{id}/review", h.SubmitReview)
		})

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
