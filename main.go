package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"Workdesk/Blob"
	"Workdesk/Commands"
	"Workdesk/Config"
	"Workdesk/Controllers"
	"Workdesk/CronJobs"
	"Workdesk/FiberConfig"
	"Workdesk/Identity"
	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Notifications"
	"Workdesk/Slack"
	"Workdesk/Store"
	"Workdesk/Sync"
	"Workdesk/middleware"
)

// backend is everything that differs between Firestore and the local database.
type backend struct {
	store    Store.DocumentStore
	blobs    Blob.BlobStore
	verifier Identity.Verifier
	sessions *Identity.Sessions
	push     Notifications.PushClient
	filesDir string
}

func main() {
	cfg := Config.Load()
	if cfg.LogFile != "" {
		setupLogging(cfg.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		b   backend
		err error
	)
	switch cfg.Backend {
	case Config.BackendFirestore:
		b, err = firestoreBackend(ctx, cfg)
	default:
		b, err = localBackend(ctx, cfg)
	}
	if err != nil {
		log.Fatalf("Failed to set up %s backend: %v", cfg.Backend, err)
	}
	defer b.store.Close()

	var slackClient *Slack.Client
	if cfg.SlackEnabled() {
		slackClient = Slack.NewClient(cfg.SlackBotToken, cfg.SlackAppToken, cfg.SlackChannelID)
	}

	var sinks Notifications.MultiSink
	if b.push != nil {
		sinks = append(sinks, Notifications.NewPushSink(b.push, pushTokens(b.store)))
	}
	if slackClient != nil {
		sinks = append(sinks, Notifications.NewSlackSink(slackClient, Models.NotificationTaskCompleted))
	}
	if cfg.EmailEnabled() {
		sinks = append(sinks, Notifications.NewEmailSink(Notifications.SMTPConfig{
			Server:       cfg.SMTPServer,
			Port:         cfg.SMTPPort,
			Username:     cfg.SMTPUsername,
			Password:     cfg.SMTPPassword,
			FromEmail:    cfg.SMTPFrom,
			FromName:     cfg.SMTPFromName,
			TLSEnabled:   cfg.SMTPTLS,
			SkipTLSCheck: cfg.SMTPSkipCheck,
		}, emailAddress(b.store), Models.NotificationTaskAssigned, Models.NotificationTaskRevision))
	}
	var sink Notifications.Sink
	if len(sinks) > 0 {
		sink = sinks
	}

	hub := Sync.NewHub(b.store, Sync.Options{SeenCapacity: cfg.NotifySeenCapacity, Sink: sink})
	if err := hub.Start(); err != nil {
		log.Fatalf("Failed to start live views: %v", err)
	}
	defer hub.Close()
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := hub.WaitReady(waitCtx); err != nil {
		log.Printf("Live views not ready yet: %v", err)
	}
	cancel()

	validate := Commands.NewValidator()
	translator, err := Commands.NewTranslator(cfg.DefaultLocale, validate)
	if err != nil {
		log.Fatalf("Failed to load messages: %v", err)
	}
	service := Commands.NewService(b.store, Commands.Options{
		Blobs:         b.blobs,
		Validator:     validate,
		UploadTimeout: cfg.UploadTimeout,
	})
	service.SetRearm(hub.Rearm)

	var poster CronJobs.Poster
	if slackClient != nil {
		poster = slackClient
	}
	jobs := CronJobs.NewAttendanceJobs(hub, poster, hub.Refresh, cfg.WorkWeekTarget)
	if err := jobs.Start(); err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}
	defer jobs.Stop()

	if slackClient != nil && cfg.SlackAppToken != "" {
		go func() {
			commands := Slack.Commands{Board: hub, Target: cfg.WorkWeekTarget}
			if err := slackClient.Listen(ctx, commands); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Slack listener stopped: %v", err)
			}
		}()
	}

	handlers := &Controllers.Handlers{
		Hub:          hub,
		Commands:     service,
		Translator:   translator,
		Store:        b.store,
		Sessions:     b.sessions,
		WeeklyTarget: cfg.WorkWeekTarget,
		RequestLog:   middleware.RequestLogPath,
	}
	auth := &middleware.Auth{Verifier: b.verifier, Lookup: hub.User}
	app := FiberConfig.NewApp(handlers, auth, FiberConfig.Options{
		FilesDir:   b.filesDir,
		RequestLog: cfg.RequestLog,
	})

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()
	if err := FiberConfig.FiberConfig(app, cfg.Port); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}

func firestoreBackend(ctx context.Context, cfg Config.Config) (backend, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.FirebaseProjectID,
		StorageBucket: cfg.FirebaseStorageBucket,
	}, option.WithCredentialsFile(cfg.FirebaseCredentials))
	if err != nil {
		return backend{}, err
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return backend{}, err
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return backend{}, err
	}
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return backend{}, err
	}

	b := backend{
		store:    Store.NewFirestoreStore(client),
		verifier: Identity.NewFirebaseVerifier(authClient),
		push:     messagingClient,
	}

	if cfg.FirebaseStorageBucket != "" {
		storageClient, err := app.Storage(ctx)
		if err != nil {
			return backend{}, err
		}
		bucket, err := storageClient.DefaultBucket()
		if err != nil {
			return backend{}, err
		}
		b.blobs = Blob.NewBucketStore(bucket)
	} else {
		log.Println("FIREBASE_STORAGE_BUCKET not set; uploads are disabled")
	}

	log.Printf("Connected to Firestore project %s", cfg.FirebaseProjectID)
	return b, nil
}

func localBackend(ctx context.Context, cfg Config.Config) (backend, error) {
	db, err := Models.Connect(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return backend{}, err
	}
	store, err := Store.NewLocalStore(db)
	if err != nil {
		return backend{}, err
	}
	disk, err := Blob.NewDiskStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return backend{}, err
	}
	sessions := Identity.NewSessions(cfg.JWTSecret, cfg.SessionTTL)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		admin := Models.AppUser{
			UID:         "admin",
			Email:       cfg.AdminEmail,
			DisplayName: "Admin",
			Role:        Models.RoleAdmin,
		}
		created, err := Identity.EnsureUser(ctx, store, admin, cfg.AdminPassword)
		if err != nil {
			return backend{}, err
		}
		if created {
			log.Printf("Created admin account %s", cfg.AdminEmail)
		}
	}

	log.Printf("Using %s database %s", cfg.DBDriver, cfg.DBName)
	return backend{
		store:    store,
		blobs:    disk,
		verifier: sessions,
		sessions: sessions,
		filesDir: disk.Root(),
	}, nil
}

// lookupUser reads the user document directly; a missing user is the zero value.
func lookupUser(ctx context.Context, store Store.DocumentStore, uid string) (Models.AppUser, error) {
	doc, err := store.Get(ctx, Models.UserPath(uid))
	if errors.Is(err, Store.ErrNotFound) {
		return Models.AppUser{}, nil
	}
	if err != nil {
		return Models.AppUser{}, err
	}
	return Mappers.ToUser(doc), nil
}

func pushTokens(store Store.DocumentStore) Notifications.TokenLookup {
	return func(ctx context.Context, uid string) ([]string, error) {
		user, err := lookupUser(ctx, store, uid)
		return user.PushTokens, err
	}
}

func emailAddress(store Store.DocumentStore) Notifications.AddressLookup {
	return func(ctx context.Context, uid string) (string, error) {
		user, err := lookupUser(ctx, store, uid)
		return user.Email, err
	}
}

func setupLogging(path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("Error creating logs directory: %v\n", err)
		return
	}

	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Error opening log file: %v\n", err)
		return
	}

	// Redirect log output to the file
	log.SetOutput(logFile)
	log.SetFlags(log.Ldate | log.Ltime)
}
