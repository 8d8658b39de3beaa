package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tmkelly/choreboard/internal/handler"
	"github.com/tmkelly/choreboard/internal/middleware"
	"github.com/tmkelly/choreboard/internal/store"
	ws "github.com/tmkelly/choreboard/internal/websocket"
)

// Server wires the stores, handlers, and websocket hub together and
// exposes the HTTP router.
type Server struct {
	db        *sql.DB
	hub       *ws.Hub
	userStore *store.UserStore

	taskHandler      *handler.TaskHandler
	ledgerHandler    *handler.LedgerHandler
	rewardHandler    *handler.RewardHandler
	mealPlanHandler  *handler.MealPlanHandler
	templateHandler  *handler.TemplateHandler
	householdHandler *handler.HouseholdHandler

	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	taskStore := store.NewTaskStore(db)
	ledgerStore := store.NewLedgerStore(db)
	rewardStore := store.NewRewardStore(db)
	mealPlanStore := store.NewMealPlanStore(db)
	templateStore := store.NewTemplateStore(db)
	ruleStore := store.NewRuleStore(db)
	householdStore := store.NewHouseholdStore(db)
	userStore := store.NewUserStore(db)
	contributionStore := store.NewContributionStore(db)
	generator := store.NewGenerator(db)

	return &Server{
		db:        db,
		hub:       hub,
		userStore: userStore,

		taskHandler:      handler.NewTaskHandler(taskStore, generator, hub),
		ledgerHandler:    handler.NewLedgerHandler(ledgerStore, userStore),
		rewardHandler:    handler.NewRewardHandler(rewardStore, hub),
		mealPlanHandler:  handler.NewMealPlanHandler(mealPlanStore, contributionStore, hub),
		templateHandler:  handler.NewTemplateHandler(templateStore, ruleStore, hub),
		householdHandler: handler.NewHouseholdHandler(householdStore, userStore, hub),

		logger: logger,
	}
}

// Hub returns the websocket hub, mainly for tests.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes: health check and household bootstrap.
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/households", s.householdHandler.Bootstrap)

	// Everything else requires a resolved identity.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	identity := middleware.RequireIdentity(s.userStore)
	outerMux.Handle("/", identity(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Tasks
	mux.HandleFunc("POST /api/tasks", s.taskHandler.Create)
	mux.HandleFunc("GET /api/tasks", s.taskHandler.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskHandler.Get)
	mux.HandleFunc("POST /api/tasks/{id}/claim", s.taskHandler.Claim)
	mux.HandleFunc("POST /api/tasks/{id}/start", s.taskHandler.Start)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskHandler.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/approve", s.taskHandler.Approve)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", s.taskHandler.Cancel)

	// Points and ledger
	mux.HandleFunc("GET /api/users/{id}/balance", s.ledgerHandler.Balance)
	mux.HandleFunc("GET /api/users/{id}/transactions", s.ledgerHandler.Transactions)
	mux.HandleFunc("GET /api/points", s.ledgerHandler.HouseholdBalances)
	mux.HandleFunc("GET /api/ledger/reconcile", s.ledgerHandler.Reconcile)

	// Rewards
	mux.HandleFunc("GET /api/rewards", s.rewardHandler.List)
	mux.Handle("POST /api/rewards", middleware.RequireAdmin(http.HandlerFunc(s.rewardHandler.Create)))
	mux.Handle("PUT /api/rewards/{id}", middleware.RequireAdmin(http.HandlerFunc(s.rewardHandler.Update)))
	mux.HandleFunc("POST /api/rewards/{id}/request", s.rewardHandler.Request)
	mux.HandleFunc("GET /api/reward-uses", s.rewardHandler.ListUses)
	mux.Handle("POST /api/reward-uses/{id}/approve", middleware.RequireAdmin(http.HandlerFunc(s.rewardHandler.ApproveUse)))
	mux.Handle("POST /api/reward-uses/{id}/reject", middleware.RequireAdmin(http.HandlerFunc(s.rewardHandler.RejectUse)))

	// Meal plans
	mux.HandleFunc("GET /api/meal-plans/{date}", s.mealPlanHandler.GetDay)
	mux.HandleFunc("PUT /api/meal-plans/{date}/{slot}", s.mealPlanHandler.PutSlot)

	// Templates and recurring rules
	mux.HandleFunc("GET /api/task-templates", s.templateHandler.ListTemplates)
	mux.Handle("POST /api/task-templates", middleware.RequireAdmin(http.HandlerFunc(s.templateHandler.CreateTemplate)))
	mux.HandleFunc("GET /api/recurring-rules", s.templateHandler.ListRules)
	mux.Handle("POST /api/recurring-rules", middleware.RequireAdmin(http.HandlerFunc(s.templateHandler.CreateRule)))
	mux.Handle("POST /api/recurring-rules/{id}/deactivate", middleware.RequireAdmin(http.HandlerFunc(s.templateHandler.DeactivateRule)))

	// Household members and settings
	mux.HandleFunc("GET /api/users", s.householdHandler.ListUsers)
	mux.Handle("POST /api/users", middleware.RequireAdmin(http.HandlerFunc(s.householdHandler.AddUser)))
	mux.Handle("PATCH /api/households", middleware.RequireAdmin(http.HandlerFunc(s.householdHandler.SetContributionRate)))

	// WebSocket for live updates
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
