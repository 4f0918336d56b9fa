package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"streamvault/api"
	"streamvault/config"
	"streamvault/handlers"
	"streamvault/internal/database"
	"streamvault/internal/events"
	"streamvault/internal/httpx"
	"streamvault/internal/secrets"
	"streamvault/logging"
	"streamvault/models"
	"streamvault/services/backup"
	"streamvault/services/downloads"
	"streamvault/services/epg"
	"streamvault/services/history"
	"streamvault/services/ingest"
	"streamvault/services/kids"
	"streamvault/services/metadata"
	"streamvault/services/playback"
	"streamvault/services/profiles"
	"streamvault/services/scheduler"
	"streamvault/services/subtitles"
	"streamvault/services/watchlist"
	"streamvault/utils"
)

func main() {
	configPath := flag.String("config", "data/settings.json", "path to the settings file")
	flag.Parse()

	configManager := config.NewManager(*configPath)
	settings, err := configManager.Load()
	if err != nil {
		log.Fatalf("[main] failed to load settings: %v", err)
	}

	logCloser, err := logging.Setup(settings.Logging)
	if err != nil {
		log.Fatalf("[main] failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	db, err := database.NewDB(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		log.Fatalf("[main] failed to open database: %v", err)
	}
	defer db.Close()

	passphrase := os.Getenv("STREAMVAULT_PASSPHRASE")
	if passphrase == "" {
		log.Fatal("[main] STREAMVAULT_PASSPHRASE must be set; it protects stored source credentials")
	}
	secretsPath := "data/secrets.json"
	store, err := secrets.Open(secretsPath, passphrase)
	if err != nil {
		log.Fatalf("[main] failed to open secrets store: %v", err)
	}

	bus := events.NewBus()
	client := httpx.NewClient(httpx.Config{
		Timeout:           time.Duration(settings.Ingest.FetchTimeoutSeconds) * time.Second,
		RequestsPerSecond: settings.Ingest.FetchRatePerSecond,
		Burst:             settings.Ingest.FetchBurst,
	})

	ingestSvc := ingest.NewService(db, client, bus, store, settings.Ingest)
	epgSvc := epg.NewService(db, client, store, settings.EPG)
	metadataSvc := metadata.NewService(db, client, settings.Metadata.APIKey, settings.Metadata.Language,
		settings.Metadata.CacheDir, settings.Metadata.CacheTTLHours)
	subtitlesClient := subtitles.NewClient(client, settings.Subtitles.APIKey, "data/subtitles")
	historySvc := history.NewService(db)
	profilesSvc := profiles.NewService(db)
	watchlistSvc := watchlist.NewService(db)
	downloadsSvc := downloads.NewService(db, bus, settings.Downloads)
	backupSvc, err := backup.NewService(db.Connection(), *configPath, secretsPath, settings.Backup)
	if err != nil {
		log.Fatalf("[main] failed to set up backups: %v", err)
	}
	kidsGate := kids.NewGate(settings.Kids)

	player := playback.NewRemotePlayer()
	controller := playback.NewController(db, player, bus, settings.Playback)
	controller.SetPreBufferDelegate(func(next *models.Episode) {
		log.Printf("[main] pre-buffering next episode %d (%s)", next.ID, next.Title)
	})

	sched := scheduler.NewService(db, ingestSvc, epgSvc, downloadsSvc, backupSvc, settings.Scheduler)
	if err := sched.Start(context.Background()); err != nil {
		log.Fatalf("[main] failed to start scheduler: %v", err)
	}

	router := utils.NewRouter()
	router.Use(api.LoggingMiddleware())

	sourcesHandler := handlers.NewSourcesHandler(db, store, ingestSvc)
	catalogHandler := handlers.NewCatalogHandler(db, metadataSvc)
	catalogHandler.SetKidsGate(kidsGate)
	discoverHandler := handlers.NewDiscoverHandler(db, metadataSvc, subtitlesClient)
	playbackHandler := handlers.NewPlaybackHandler(controller, player)
	historyHandler := handlers.NewHistoryHandler(historySvc)
	watchlistHandler := handlers.NewWatchlistHandler(watchlistSvc)
	profilesHandler := handlers.NewProfilesHandler(profilesSvc)
	epgHandler := handlers.NewEPGHandler(epgSvc)
	downloadsHandler := handlers.NewDownloadsHandler(downloadsSvc)
	backupsHandler := handlers.NewBackupsHandler(backupSvc)
	eventsHandler := handlers.NewEventsHandler(bus)

	apiRouter := router.PathPrefix("/api").Subrouter()

	apiRouter.HandleFunc("/sources", sourcesHandler.Create).Methods(http.MethodPost)
	apiRouter.HandleFunc("/sources", sourcesHandler.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/sources/{id}", sourcesHandler.Get).Methods(http.MethodGet)
	apiRouter.HandleFunc("/sources/{id}", sourcesHandler.Delete).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/sources/{id}/active", sourcesHandler.SetActive).Methods(http.MethodPut)
	apiRouter.HandleFunc("/sources/{id}/import", sourcesHandler.Import).Methods(http.MethodPost)

	apiRouter.HandleFunc("/movies", catalogHandler.ListMovies).Methods(http.MethodGet)
	apiRouter.HandleFunc("/movies/{id}", catalogHandler.GetMovie).Methods(http.MethodGet)
	apiRouter.HandleFunc("/movies/{id}/enrich", catalogHandler.EnrichMovie).Methods(http.MethodPost)
	apiRouter.HandleFunc("/movies/{id}/similar", discoverHandler.Similar).Methods(http.MethodGet)
	apiRouter.HandleFunc("/movies/{id}/videos", discoverHandler.Videos).Methods(http.MethodGet)
	apiRouter.HandleFunc("/movies/{id}/subtitles", discoverHandler.SearchSubtitles).Methods(http.MethodGet)
	apiRouter.HandleFunc("/series", catalogHandler.ListSeries).Methods(http.MethodGet)
	apiRouter.HandleFunc("/series/{id}", catalogHandler.GetSeries).Methods(http.MethodGet)
	apiRouter.HandleFunc("/seasons/{seasonId}/episodes", catalogHandler.ListEpisodes).Methods(http.MethodGet)
	apiRouter.HandleFunc("/channels", catalogHandler.ListChannels).Methods(http.MethodGet)
	apiRouter.HandleFunc("/channels/{id}", catalogHandler.GetChannel).Methods(http.MethodGet)
	apiRouter.HandleFunc("/channels/{id}/epg", epgHandler.NowNext).Methods(http.MethodGet)
	apiRouter.HandleFunc("/channels/{id}/schedule", epgHandler.Schedule).Methods(http.MethodGet)
	apiRouter.HandleFunc("/search", catalogHandler.Search).Methods(http.MethodGet)
	apiRouter.HandleFunc("/trending", discoverHandler.Trending).Methods(http.MethodGet)
	apiRouter.HandleFunc("/subtitles/download", discoverHandler.DownloadSubtitle).Methods(http.MethodPost)
	apiRouter.HandleFunc("/epg/refresh", epgHandler.Refresh).Methods(http.MethodPost)

	apiRouter.HandleFunc("/playback/load", playbackHandler.Load).Methods(http.MethodPost)
	apiRouter.HandleFunc("/playback/state", playbackHandler.State).Methods(http.MethodGet)
	apiRouter.HandleFunc("/playback/pause", playbackHandler.Pause).Methods(http.MethodPost)
	apiRouter.HandleFunc("/playback/resume", playbackHandler.Resume).Methods(http.MethodPost)
	apiRouter.HandleFunc("/playback/stop", playbackHandler.Stop).Methods(http.MethodPost)
	apiRouter.HandleFunc("/playback/rate", playbackHandler.ReportRate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/playback/stall", playbackHandler.ReportStall).Methods(http.MethodPost)
	apiRouter.HandleFunc("/playback/ended", playbackHandler.ReportEnded).Methods(http.MethodPost)
	apiRouter.HandleFunc("/playback/clock", playbackHandler.ReportClock).Methods(http.MethodPost)

	apiRouter.HandleFunc("/history", historyHandler.Record).Methods(http.MethodPost)
	apiRouter.HandleFunc("/history", historyHandler.Forget).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/history/recent", historyHandler.Recent).Methods(http.MethodGet)
	apiRouter.HandleFunc("/history/continue", historyHandler.ContinueWatching).Methods(http.MethodGet)

	apiRouter.HandleFunc("/watchlists", watchlistHandler.CreateList).Methods(http.MethodPost)
	apiRouter.HandleFunc("/watchlists", watchlistHandler.Lists).Methods(http.MethodGet)
	apiRouter.HandleFunc("/watchlists/{id}", watchlistHandler.DeleteList).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/watchlists/{id}/items", watchlistHandler.Items).Methods(http.MethodGet)
	apiRouter.HandleFunc("/watchlists/{id}/items", watchlistHandler.AddItem).Methods(http.MethodPost)
	apiRouter.HandleFunc("/watchlists/{id}/items", watchlistHandler.RemoveItem).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/queue", watchlistHandler.Queue).Methods(http.MethodGet)
	apiRouter.HandleFunc("/queue", watchlistHandler.Enqueue).Methods(http.MethodPost)
	apiRouter.HandleFunc("/queue/next", watchlistHandler.Dequeue).Methods(http.MethodPost)

	apiRouter.HandleFunc("/profiles", profilesHandler.Create).Methods(http.MethodPost)
	apiRouter.HandleFunc("/profiles", profilesHandler.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/profiles/{id}", profilesHandler.Get).Methods(http.MethodGet)
	apiRouter.HandleFunc("/profiles/{id}", profilesHandler.Delete).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/profiles/{id}/favorites", profilesHandler.Favorites).Methods(http.MethodGet)
	apiRouter.HandleFunc("/profiles/{id}/favorites", profilesHandler.ToggleFavorite).Methods(http.MethodPost)

	apiRouter.HandleFunc("/downloads", downloadsHandler.Enqueue).Methods(http.MethodPost)
	apiRouter.HandleFunc("/downloads", downloadsHandler.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/downloads/{id}", downloadsHandler.Get).Methods(http.MethodGet)
	apiRouter.HandleFunc("/downloads/{id}", downloadsHandler.Remove).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/backups", backupsHandler.Create).Methods(http.MethodPost)
	apiRouter.HandleFunc("/backups", backupsHandler.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/backups/{filename}", backupsHandler.Download).Methods(http.MethodGet)
	apiRouter.HandleFunc("/backups/{filename}", backupsHandler.Delete).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/events", eventsHandler.Stream).Methods(http.MethodGet)

	perMinute := settings.Server.APIRatePerMinute
	if perMinute <= 0 {
		perMinute = 300
	}
	burst := settings.Server.APIRateBurst
	if burst <= 0 {
		burst = 60
	}
	limiter := api.NewIPRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)

	server := &http.Server{
		Addr:    settings.Server.ListenAddr,
		Handler: api.RateLimitHandler(limiter, router),
	}

	go func() {
		log.Printf("[main] listening on %s", settings.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] server shutdown: %v", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Printf("[main] scheduler shutdown: %v", err)
	}
	controller.Stop()
}
