package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tallycrm-backend/api/controllers"
	webhookcontrollers "github.com/tallyhq/tallycrm-backend/api/controllers/webhooks"
	"github.com/tallyhq/tallycrm-backend/api/middleware"
	"github.com/tallyhq/tallycrm-backend/internal/accounts"
	"github.com/tallyhq/tallycrm-backend/internal/assistant"
	"github.com/tallyhq/tallycrm-backend/internal/crm"
	"github.com/tallyhq/tallycrm-backend/internal/invoices"
	"github.com/tallyhq/tallycrm-backend/internal/payments"
	"github.com/tallyhq/tallycrm-backend/internal/subscriptions"
	"github.com/tallyhq/tallycrm-backend/internal/templates"
	stripewebhook "github.com/tallyhq/tallycrm-backend/internal/webhooks/stripe"
	"github.com/tallyhq/tallycrm-backend/pkg/config"
	"github.com/tallyhq/tallycrm-backend/pkg/db"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
	"github.com/tallyhq/tallycrm-backend/pkg/redis"
	"github.com/tallyhq/tallycrm-backend/pkg/stripe"
)

// RouterParams bundles everything the HTTP layer depends on.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis *redis.Client

	Accounts      *accounts.Service
	CRM           *crm.Service
	Invoices      *invoices.Service
	Payments      *payments.Service
	Subscriptions *subscriptions.Service
	Assistant     *assistant.Service
	Templates     *templates.Service

	StripeClient       *stripe.Client
	StripeWebhook      *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeClient, p.StripeWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.Accounts, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.Accounts, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", controllers.Profile(p.Accounts, logg))
			r.Put("/", controllers.ProfileUpdate(p.Accounts, logg))
			r.Post("/change-password", controllers.ChangePassword(p.Accounts, logg))
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Post("/", controllers.ContactCreate(p.CRM, logg))
			r.Get("/", controllers.ContactList(p.CRM, logg))
			r.Get("/{contactId}", controllers.ContactDetail(p.CRM, logg))
			r.Put("/{contactId}", controllers.ContactUpdate(p.CRM, logg))
			r.Delete("/{contactId}", controllers.ContactDelete(p.CRM, logg))
		})

		r.Route("/companies", func(r chi.Router) {
			r.Post("/", controllers.CompanyCreate(p.CRM, logg))
			r.Get("/", controllers.CompanyList(p.CRM, logg))
			r.Get("/{companyId}", controllers.CompanyDetail(p.CRM, logg))
			r.Put("/{companyId}", controllers.CompanyUpdate(p.CRM, logg))
			r.Delete("/{companyId}", controllers.CompanyDelete(p.CRM, logg))
		})

		r.Route("/deals", func(r chi.Router) {
			r.Post("/", controllers.DealCreate(p.CRM, logg))
			r.Get("/", controllers.DealList(p.CRM, logg))
			r.Get("/{dealId}", controllers.DealDetail(p.CRM, logg))
			r.Put("/{dealId}", controllers.DealUpdate(p.CRM, logg))
			r.Post("/{dealId}/move", controllers.DealMove(p.CRM, logg))
			r.Post("/{dealId}/close", controllers.DealClose(p.CRM, logg))
			r.Delete("/{dealId}", controllers.DealDelete(p.CRM, logg))
		})

		r.Route("/pipelines", func(r chi.Router) {
			r.Post("/", controllers.PipelineCreate(p.CRM, logg))
			r.Get("/", controllers.PipelineList(p.CRM, logg))
			r.Get("/{pipelineId}/stages", controllers.PipelineStages(p.CRM, logg))
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", controllers.TaskCreate(p.CRM, logg))
			r.Get("/", controllers.TaskList(p.CRM, logg))
			r.Get("/{taskId}", controllers.TaskDetail(p.CRM, logg))
			r.Put("/{taskId}", controllers.TaskUpdate(p.CRM, logg))
			r.Post("/{taskId}/complete", controllers.TaskComplete(p.CRM, logg))
			r.Delete("/{taskId}", controllers.TaskDelete(p.CRM, logg))
		})

		r.Route("/activities", func(r chi.Router) {
			r.Post("/", controllers.ActivityLog(p.CRM, logg))
			r.Get("/", controllers.ActivityList(p.CRM, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", controllers.InvoiceCreate(p.Invoices, logg))
			r.Get("/", controllers.InvoiceList(p.Invoices, logg))
			r.Get("/{invoiceId}", controllers.InvoiceDetail(p.Invoices, logg))
			r.Put("/{invoiceId}", controllers.InvoiceUpdate(p.Invoices, logg))
			r.Post("/{invoiceId}/send", controllers.InvoiceSend(p.Invoices, logg))
			r.Post("/{invoiceId}/cancel", controllers.InvoiceCancel(p.Invoices, logg))
		})

		r.Route("/offers", func(r chi.Router) {
			r.Post("/", controllers.OfferCreate(p.Invoices, logg))
			r.Get("/", controllers.OfferList(p.Invoices, logg))
			r.Get("/{offerId}", controllers.OfferDetail(p.Invoices, logg))
			r.Put("/{offerId}", controllers.OfferUpdate(p.Invoices, logg))
			r.Post("/{offerId}/send", controllers.OfferSend(p.Invoices, logg))
			r.Post("/{offerId}/accept", controllers.OfferAccept(p.Invoices, logg))
			r.Post("/{offerId}/reject", controllers.OfferReject(p.Invoices, logg))
			r.Post("/{offerId}/convert", controllers.OfferConvert(p.Invoices, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentRecord(p.Payments, logg))
			r.Get("/", controllers.PaymentList(p.Payments, logg))
			r.Get("/{paymentId}", controllers.PaymentDetail(p.Payments, logg))
			r.Post("/{paymentId}/match", controllers.PaymentMatch(p.Payments, logg))
			r.Post("/{paymentId}/unmatch", controllers.PaymentUnmatch(p.Payments, logg))
			r.Delete("/{paymentId}", controllers.PaymentDelete(p.Payments, logg))
		})

		r.Route("/subscription", func(r chi.Router) {
			r.Get("/", controllers.SubscriptionFetch(p.Subscriptions, logg))
			r.Get("/plans", controllers.SubscriptionPlans())
			r.Get("/usage", controllers.SubscriptionUsage(p.Subscriptions, logg))
			r.Post("/checkout", controllers.SubscriptionCheckout(p.Subscriptions, logg))
			r.Post("/cancel", controllers.SubscriptionCancel(p.Subscriptions, logg))
			r.Get("/history", controllers.SubscriptionHistory(p.Subscriptions, logg))
			r.Get("/invoices", controllers.SubscriptionInvoices(p.Subscriptions, logg))
		})

		r.Route("/assistant", func(r chi.Router) {
			r.Post("/chat", controllers.AssistantChat(p.Assistant, logg))
			r.Post("/email-draft", controllers.AssistantDraftEmail(p.Assistant, logg))
			r.Post("/contact-insights", controllers.AssistantContactInsights(p.Assistant, logg))
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", controllers.ConversationList(p.Assistant, logg))
				r.Get("/{conversationId}", controllers.ConversationDetail(p.Assistant, logg))
				r.Delete("/{conversationId}", controllers.ConversationDelete(p.Assistant, logg))
			})
		})

		r.Route("/templates", func(r chi.Router) {
			r.Route("/documents", func(r chi.Router) {
				r.Post("/", controllers.DocumentTemplateCreate(p.Templates, logg))
				r.Get("/", controllers.DocumentTemplateList(p.Templates, logg))
				r.Get("/{templateId}", controllers.DocumentTemplateDetail(p.Templates, logg))
				r.Put("/{templateId}", controllers.DocumentTemplateUpdate(p.Templates, logg))
				r.Delete("/{templateId}", controllers.DocumentTemplateDelete(p.Templates, logg))
			})
			r.Route("/emails", func(r chi.Router) {
				r.Post("/", controllers.EmailTemplateCreate(p.Templates, logg))
				r.Get("/", controllers.EmailTemplateList(p.Templates, logg))
				r.Get("/{templateId}", controllers.EmailTemplateDetail(p.Templates, logg))
				r.Put("/{templateId}", controllers.EmailTemplateUpdate(p.Templates, logg))
				r.Delete("/{templateId}", controllers.EmailTemplateDelete(p.Templates, logg))
			})
		})
	})

	return r
}
