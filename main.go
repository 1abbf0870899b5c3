package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"teamboard/microservices/collab-service/adapters"
	"teamboard/microservices/collab-service/config"
	"teamboard/microservices/collab-service/handlers"
	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/queue"
	"teamboard/microservices/collab-service/realtime"
	"teamboard/microservices/collab-service/repositories"
	"teamboard/microservices/collab-service/services"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     2 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
}

func main() {
	logging.InitLogger()
	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Collab Service...")

	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatalf("Event ID: CONFIG_LOAD_ERROR, Description: Error loading configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	if err := mongoClient.Ping(connectCtx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", cfg.MongoURI)

	db := mongoClient.Database(cfg.MongoDBName)
	taskRepo := repositories.NewTaskRepo(db.Collection("tasks"))
	activityRepo := repositories.NewActivityRepo(db.Collection("activities"))
	projectRepo := repositories.NewProjectRepo(db.Collection("projects"))

	notificationRepo, err := repositories.NewNotificationRepo(cfg.CassandraHost)
	if err != nil {
		logging.Logger.Fatalf("Event ID: CASS_CONNECTION_FAILED, Description: Cassandra connection failed: %v", err)
	}
	defer notificationRepo.CloseSession()

	notificationRepo.CreateTables()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(connectCtx).Err(); err != nil {
		logging.Logger.Fatalf("Event ID: REDIS_PING_FAILED, Description: Redis connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: REDIS_CONNECTED, Description: Successfully connected to Redis at %s.", cfg.RedisAddr)

	broadcaster := realtime.NewRedisBroadcaster(rdb)
	jobQueue := queue.NewRedisQueue(rdb, "collab:jobs")

	httpClient := adapters.NewHTTPClient()
	directory := adapters.NewDirectoryClient(cfg.UsersServiceURL, httpClient, newBreaker("UsersServiceCB"))
	storage := adapters.NewStorageClient(cfg.StorageServiceURL, httpClient, newBreaker("StorageServiceCB"))
	mailer := adapters.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailFrom, cfg.EmailPassword)

	notificationService := services.NewNotificationService(notificationRepo, directory, mailer, broadcaster)
	activityService := services.NewActivityService(activityRepo, taskRepo, directory, broadcaster)
	taskService := services.NewTaskService(taskRepo, projectRepo, activityService, notificationService, directory, storage, broadcaster, jobQueue, cfg.RetentionDays)
	inviteService := services.NewInviteService(taskRepo, notificationService, broadcaster)
	membershipService := services.NewMembershipService(taskRepo, projectRepo, directory, broadcaster)
	retentionService := services.NewRetentionService(taskRepo, projectRepo, activityService, notificationService, storage, broadcaster, cfg.RetentionDays)

	worker := queue.NewWorker(jobQueue)
	worker.Handle(services.JobTaskAssigned, notificationService.HandleTaskAssigned)
	go worker.Run(ctx)

	go retentionService.Run(ctx, time.Duration(cfg.SweepIntervalHours)*time.Hour)

	taskHandler := handlers.NewTaskHandler(taskService, inviteService, activityService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	webhookHandler := handlers.NewWebhookHandler(membershipService, cfg.WebhookSecret)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, pingCancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer pingCancel()
		if err := mongoClient.Ping(pingCtx, nil); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/webhooks/membership", webhookHandler.HandleMembershipEvent).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(handlers.AuthMiddleware(cfg.JWTSecret))

	api.HandleFunc("/tasks", taskHandler.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/user/{userID}", taskHandler.GetUserTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/project/{projectID}", taskHandler.GetTasksByProject).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskID}", taskHandler.GetTaskByID).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskID}", taskHandler.UpdateTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{taskID}", taskHandler.DeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{taskID}/approve", taskHandler.ApproveTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/disapprove", taskHandler.DisapproveTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/invite", taskHandler.InviteToTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/invites/respond", taskHandler.RespondToInvite).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/activities", taskHandler.AddActivity).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/activities", taskHandler.GetActivities).Methods(http.MethodGet)
	api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{notificationID}/read", notificationHandler.MarkNotificationRead).Methods(http.MethodPut)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: handlers.EnableCORS(router),
	}

	go func() {
		logging.Logger.Infof("Event ID: SERVER_START, Description: Collab service listening on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatalf("Event ID: SERVER_ERROR, Description: Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Logger.Info("Event ID: SERVICE_STOPPING, Description: Shutdown signal received, stopping Collab Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Errorf("Event ID: SERVER_SHUTDOWN_ERROR, Description: Graceful shutdown failed: %v", err)
	}

	logging.Logger.Info("Event ID: SERVICE_STOPPED, Description: Collab Service stopped.")
}
