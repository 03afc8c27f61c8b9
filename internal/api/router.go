package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/equinoxcap/investor-portal-backend/internal/api/handlers"
	custommiddleware "github.com/equinoxcap/investor-portal-backend/internal/api/middleware"
	"github.com/equinoxcap/investor-portal-backend/internal/config"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	systemService *service.SystemService,
	feeService *service.FeeService,
	importService *service.ImportService,
	formulaService *service.FormulaService,
	transactionService *service.TransactionService,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/fee", func(r chi.Router) {
			feesHandler := handlers.NewFeesHandler(feeService)
			importsHandler := handlers.NewImportsHandler(importService)

			r.Post("/profile", feesHandler.CreateProfile)
			r.Post("/calculate/batch", feesHandler.BatchCalculate)
			r.With(custommiddleware.ValidateIDParam("transactionID")).
				Get("/calculate/{transactionID}", feesHandler.CalculateTransactionFees)

			r.Route("/import", func(r chi.Router) {
				r.Post("/", importsHandler.Import)
				r.Get("/template", importsHandler.Template)
				r.With(custommiddleware.ValidateUUIDParam("importID")).
					Post("/{importID}/apply", importsHandler.Apply)
				r.With(custommiddleware.ValidateUUIDParam("importID")).
					Get("/{importID}/file", importsHandler.Download)
			})
		})

		r.Route("/formula", func(r chi.Router) {
			formulasHandler := handlers.NewFormulasHandler(formulaService)
			r.Get("/template", formulasHandler.ListTemplates)
			r.Post("/template", formulasHandler.CreateTemplate)
			r.Get("/template/code/{code}", formulasHandler.GetTemplateByCode)
			r.Route("/template/{templateID}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDParam("templateID"))
				r.Get("/", formulasHandler.GetTemplate)
				r.Put("/", formulasHandler.UpdateTemplate)
				r.Delete("/", formulasHandler.DeleteTemplate)
			})
			r.Post("/test", formulasHandler.TestFormula)
		})

		r.Route("/deal/{dealID}", func(r chi.Router) {
			r.Use(custommiddleware.ValidateIDParam("dealID"))

			feesHandler := handlers.NewFeesHandler(feeService)
			r.Get("/fees", feesHandler.GetDealFees)
			r.Get("/fee-profile", feesHandler.GetDealProfile)

			formulasHandler := handlers.NewFormulasHandler(formulaService)
			r.Get("/variables", formulasHandler.GetDealVariables)
			r.Post("/variables", formulasHandler.SetDealVariables)
			r.Get("/formula", formulasHandler.GetDealFormula)
			r.Post("/formula", formulasHandler.AssignFormula)
			r.Get("/formula/history", formulasHandler.GetAssignmentHistory)
			r.Post("/calculate", formulasHandler.Calculate)
			r.Get("/calculations", formulasHandler.GetCalculationHistory)
		})

		r.Route("/transaction", func(r chi.Router) {
			transactionsHandler := handlers.NewTransactionsHandler(transactionService)
			r.Post("/", transactionsHandler.Create)
			r.Post("/preview", transactionsHandler.Preview)
			r.Post("/bulk", transactionsHandler.BulkCreate)
			r.Route("/{transactionID}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateIDParam("transactionID"))
				r.Get("/", transactionsHandler.Get)
				r.Post("/recalculate", transactionsHandler.Recalculate)
			})
		})
	})

	return r
}
