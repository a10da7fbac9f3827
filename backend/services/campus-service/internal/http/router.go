package httpserver

import (
	"net/http"

	"campuswallet/backend/services/campus-service/internal/http/handlers"
	"campuswallet/backend/services/campus-service/internal/http/middleware"
	"campuswallet/backend/services/campus-service/internal/models"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Tokens    middleware.TokenValidator
	DeviceKey string

	Auth         *handlers.AuthHandlers
	Students     *handlers.StudentHandlers
	Items        *handlers.ItemHandlers
	Transactions *handlers.TransactionHandlers
	Commerce     *handlers.CommerceHandlers
	Wallet       *handlers.WalletHandlers
	Payments     *handlers.PaymentHandlers
	RFID         *handlers.RFIDHandlers
	Health       http.HandlerFunc
	// Events upgrades GET /ws; it authenticates on its own since browsers cannot send headers.
	Events http.HandlerFunc
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.Auth(deps.Tokens)
	authenticated := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, auth)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, auth, middleware.RequireRole(models.RoleAdmin))
	}
	student := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, auth, middleware.RequireRole(models.RoleStudent))
	}
	device := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, middleware.DeviceKey(deps.DeviceKey, deps.Tokens))
	}

	mux.Handle("GET /health", deps.Health)
	if deps.Events != nil {
		mux.Handle("GET /ws", deps.Events)
	}

	mux.HandleFunc("POST /auth/login", deps.Auth.Login)
	mux.HandleFunc("POST /auth/student/login", deps.Auth.StudentLogin)
	mux.Handle("GET /me", authenticated(deps.Auth.Me))

	mux.Handle("GET /students", admin(deps.Students.List))
	mux.Handle("POST /students", admin(deps.Students.Create))
	mux.Handle("POST /students/bulk", admin(deps.Students.BulkCreate))
	mux.Handle("GET /students/find", admin(deps.Students.Find))
	mux.Handle("GET /students/{id}", admin(deps.Students.Get))
	mux.Handle("PUT /students/{id}", admin(deps.Students.Update))
	mux.Handle("DELETE /students/{id}", admin(deps.Students.Deactivate))
	mux.Handle("PUT /students/{id}/password", admin(deps.Auth.SetStudentPassword))

	mux.Handle("GET /items", authenticated(deps.Items.List))
	mux.Handle("GET /items/{id}", authenticated(deps.Items.Get))
	mux.Handle("POST /items", admin(deps.Items.Create))
	mux.Handle("PUT /items/{id}", admin(deps.Items.Update))
	mux.Handle("DELETE /items/{id}", admin(deps.Items.Delete))

	mux.Handle("GET /transactions", authenticated(deps.Transactions.List))
	mux.Handle("GET /transactions/{id}", authenticated(deps.Transactions.Get))
	mux.Handle("POST /transactions", admin(deps.Transactions.Create))
	mux.Handle("POST /transactions/checkout", admin(deps.Transactions.Checkout))
	mux.Handle("PUT /transactions/{id}", admin(deps.Transactions.Update))
	mux.Handle("DELETE /transactions/{id}", admin(deps.Transactions.Delete))

	mux.Handle("GET /library/active", authenticated(deps.Commerce.ActiveBorrows))
	for _, module := range []models.Module{models.ModuleLibrary, models.ModuleFood, models.ModuleStore} {
		mux.Handle("GET /"+string(module)+"/history", authenticated(deps.Commerce.History(module)))
		mux.Handle("GET /"+string(module)+"/history-all", admin(deps.Commerce.HistoryAll(module)))
	}

	mux.Handle("POST /admin/wallet/deposit", admin(deps.Wallet.Deposit))
	mux.Handle("POST /admin/wallet/withdraw", admin(deps.Wallet.Withdraw))
	mux.Handle("GET /admin/wallet/reconcile", admin(deps.Wallet.Reconcile))
	mux.Handle("GET /admin/wallet/{studentId}", admin(deps.Wallet.Student))
	mux.Handle("GET /wallet", student(deps.Wallet.Mine))

	mux.Handle("POST /wallet/add", student(deps.Payments.AddMoney))
	mux.Handle("POST /wallet/verify", student(deps.Payments.Verify))
	mux.HandleFunc("POST /wallet/webhook", deps.Payments.Webhook)

	mux.Handle("POST /rfid/scan", device(deps.RFID.Scan))
	mux.Handle("GET /rfid/current", device(deps.RFID.Current))
	mux.Handle("GET /rfid/pending", admin(deps.RFID.Pending))
	mux.Handle("POST /rfid/approve/{id}", admin(deps.RFID.Approve))
	mux.Handle("POST /rfid/reject/{id}", admin(deps.RFID.Reject))

	return mux
}
