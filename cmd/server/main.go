package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-blog-app/internal/auth"
	"go-blog-app/internal/cache"
	"go-blog-app/internal/config"
	"go-blog-app/internal/data"
	"go-blog-app/internal/handler"
	"go-blog-app/internal/logger"
	"go-blog-app/internal/media"
	"go-blog-app/internal/middleware"
	"go-blog-app/internal/service"
	"go-blog-app/internal/session"
	"go-blog-app/internal/view"
	"go-blog-app/web"

	"github.com/alexedwards/scs/mysqlstore"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		// Use fmt.Printf here because the logger is not yet initialized.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Initialization ---
	log := logger.New(cfg.Log, nil)

	// --- Pre-flight Checks ---
	if cfg.Session.SecretKey == "" || cfg.Session.SecretKey == "CHANGE_ME_IN_PRODUCTION_SECRET!!" {
		log.Fatal(errors.New("session secret key not set"), "Please set a secure BLOG_SESSION_SECRETKEY environment variable.")
	}

	// --- Database Initialization and Migration ---
	log.Info("Applying database migrations...")
	version, err := data.ApplyMigrations(cfg.DB)
	if err != nil {
		log.Fatal(err, "Failed to apply migrations")
	}
	log.Info(fmt.Sprintf("Schema is at version %d.", version))

	log.Info("Connecting to the database...")
	db, err := data.NewDB(cfg.DB)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	log.Info("Database connection successful.")

	// --- Cache and Media Storage ---
	log.Info(fmt.Sprintf("Initializing %s cache...", cfg.Cache.Backend))
	store, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatal(err, "Failed to initialize cache")
	}
	defer store.Close()

	images, err := media.New(cfg.Media)
	if err != nil {
		log.Fatal(err, "Failed to initialize media storage")
	}
	var mediaDir string
	if local, ok := images.(*media.LocalStore); ok {
		mediaDir = local.Root()
	}

	// --- Session Management Setup ---
	sessionManager := session.New(mysqlstore.New(db.DB), session.Options{
		Lifetime: time.Duration(cfg.Session.Lifetime) * time.Hour,
		Secure:   cfg.Server.TLS.Enabled,
	})

	// --- Authentication and Authorization Setup ---
	log.Info("Initializing authentication and authorization...")
	enforcer, err := auth.NewEnforcer(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err, "Failed to initialize enforcer")
	}
	auth.SeedDefaultPolicies(enforcer, log)

	ctx := context.Background()
	authenticator, err := auth.NewAuthenticator(ctx, &cfg.OIDC)
	if err != nil {
		log.Fatal(err, "Failed to initialize authenticator")
	}
	log.Info("Auth components initialized and policies seeded.")

	// --- View Template Initialization ---
	viewService, err := view.New(web.TemplateFS, view.Settings{
		Title:       cfg.Blog.Title,
		Description: cfg.Blog.Description,
		BaseURL:     cfg.Server.BaseURL,
	})
	if err != nil {
		log.Fatal(err, "Failed to initialize view templates")
	}

	// --- Dependency Injection and Handler Initialization ---
	postRepository := data.NewSQLPostRepository(db)
	categoryRepository := data.NewCategoryRepository(db)
	tagRepository := data.NewTagRepository(db)
	userRepository := data.NewUserRepository(db)

	taxonomyService := service.NewTaxonomyService(categoryRepository, tagRepository, store, log)
	postService := service.NewPostService(postRepository, taxonomyService, images, store, service.PostServiceOptions{
		Blog:           cfg.Blog,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		CacheTTL:       cfg.Cache.TTL,
		Logger:         log,
	})

	router := handler.NewRouter(handler.Router{
		Posts:    handler.NewPostHandler(postService, taxonomyService, viewService, sessionManager, cfg.Media.MaxUploadBytes, log),
		Taxonomy: handler.NewTaxonomyHandler(postService, taxonomyService, viewService, sessionManager, log),
		Auth:     handler.NewAuthHandler(authenticator, userRepository, sessionManager, enforcer, cfg.Auth.StaffEmails, log),
		Seo:      handler.NewSeoHandler(postService, store, cfg.Cache.TTL, cfg.Server.BaseURL, log),

		Session:      sessionManager,
		Authenticate: middleware.Authenticate(sessionManager, userRepository, log),
		Authorize:    middleware.Authorizer(enforcer, log),
		Errors:       middleware.Error(log, viewService),

		Static:   web.Assets(),
		MediaDir: mediaDir,
	})

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if cfg.Server.TLS.Enabled {
			log.Info(fmt.Sprintf("Starting HTTPS server on %s", server.Addr))
			if err := server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTPS server")
			}
		} else {
			log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTP server")
			}
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Warn("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err, "Server forced to shutdown")
	}
	log.Info("Server exiting")
}
