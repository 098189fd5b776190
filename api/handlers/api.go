package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/placachat/placa-chat-api/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/placachat/placa-chat-api/api"
	"github.com/placachat/placa-chat-api/api/scheduler"
	"github.com/placachat/placa-chat-api/config"
	"github.com/placachat/placa-chat-api/databases"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	DB       databases.CollectionHelper
	Config   config.Config
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	udb := databases.NewUserDatabase(a.dbHelper)
	vdb := databases.NewVehicleDatabase(a.dbHelper)
	ptdb := databases.NewPushTokenDatabase(a.dbHelper)

	u := User{DB: udb, PVDB: databases.NewPendingVerificationDatabase(a.dbHelper)}
	pv := Verification{PVDB: databases.NewPendingVerificationDatabase(a.dbHelper), UDB: udb}
	v := Vehicle{DB: vdb, UDB: udb}
	p := Plate{DB: vdb}
	chat := Chat{
		TDB:    databases.NewThreadDatabase(a.dbHelper),
		MDB:    databases.NewMessageDatabase(a.dbHelper),
		VDB:    vdb,
		UDB:    udb,
		RDB:    databases.NewRateLimitDatabase(a.dbHelper),
		PTDB:   ptdb,
		Limits: a.Config.Limits,
	}
	pt := PushToken{DB: ptdb}
	adm := Admin{UDB: udb}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)
	r.HandleFunc("/ws/notifications", HandleNotificationsWebSocket)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", http.HandlerFunc(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")
	apiCreate.Handle("/admin/login", http.HandlerFunc(adm.AdminLoginHandler)).Methods("POST")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/verifications/verify", http.HandlerFunc(pv.VerifyCodeHandler)).Methods("POST")
	apiCreate.Handle("/user/verifications/resend", http.HandlerFunc(pv.ResendVerificationCodeHandler)).Methods("POST")

	apiCreate.Handle("/chat/threads", api.Middleware(m.RequireVerified(http.HandlerFunc(chat.OpenThreadHandler)))).Methods("POST")
	apiCreate.Handle("/chat/messages", api.Middleware(m.RequireVerified(http.HandlerFunc(chat.SendMessageHandler)))).Methods("POST")
	apiCreate.Handle("/chat/plate-send", api.Middleware(m.RequireVerified(http.HandlerFunc(chat.PlateSendHandler)))).Methods("POST")
	apiCreate.Handle("/chat/threads", api.Middleware(http.HandlerFunc(chat.ListThreadsHandler))).Methods("GET")
	apiCreate.Handle("/chat/threads/{thread_id}", api.Middleware(http.HandlerFunc(chat.ThreadDetailHandler))).Methods("GET")

	apiCreate.Handle("/plate/scan", api.Middleware(http.HandlerFunc(p.ScanHandler))).Methods("POST")
	apiCreate.Handle("/plate/{plate}", api.Middleware(http.HandlerFunc(p.LookupHandler))).Methods("GET")

	apiCreate.Handle("/vehicles/claim", api.Middleware(m.RequireVerified(http.HandlerFunc(v.ClaimHandler)))).Methods("POST")
	apiCreate.Handle("/vehicles/mine", api.Middleware(http.HandlerFunc(v.MineHandler))).Methods("GET")
	apiCreate.Handle("/admin/vehicles", api.RequireAdmin(http.HandlerFunc(v.AdminUpsertHandler))).Methods("POST")

	apiCreate.Handle("/push-token", api.Middleware(http.HandlerFunc(pt.SaveHandler))).Methods("POST")
	apiCreate.Handle("/push-token", api.Middleware(http.HandlerFunc(pt.DeleteHandler))).Methods("DELETE")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("placa-chat-api has connected to the database")

	// start the cleanup jobs
	s := scheduler.NewScheduler(
		databases.NewRateLimitDatabase(a.dbHelper),
		databases.NewUserDatabase(a.dbHelper),
		databases.NewPushTokenDatabase(a.dbHelper),
		databases.NewPendingVerificationDatabase(a.dbHelper),
	)
	s.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
