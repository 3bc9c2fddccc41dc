package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kwv/voxmesh/atlas"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *atlas.Config
	StateTracker *atlas.StateTracker
	Cache        *atlas.IndexCache
	Warper       *atlas.AffineWarper
	MQTTClient   *atlas.MQTTClient
	Publisher    *atlas.Publisher

	// CLI flags (effectively dependencies)
	ConfigFile string
	DataDir    string
	CacheDir   string
	HTTPPort   int
	MQTTMode   bool
	HTTPMode   bool
}

// AppOptions carries parsed CLI options into the App.
type AppOptions struct {
	ConfigFile string
	DataDir    string
	CacheDir   string
	HTTPPort   int
	MQTTMode   bool
	HTTPMode   bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.DataDir = opts.DataDir
	a.CacheDir = opts.CacheDir
	a.HTTPPort = opts.HTTPPort
	a.MQTTMode = opts.MQTTMode
	a.HTTPMode = opts.HTTPMode
}

// setup loads config and wires cache, warper and state tracker.
func (a *App) setup() error {
	config, err := atlas.LoadConfig(a.ConfigFile)
	if err != nil {
		return err
	}
	a.Config = config

	cacheDir := a.CacheDir
	if cacheDir == "" {
		cacheDir = config.CacheDir
	}
	a.Cache = atlas.NewIndexCache(cacheDir)
	a.Warper = config.Warper()
	a.StateTracker = atlas.NewStateTracker(a.Cache, config.MaxFetchVoxels)
	return nil
}

// loadFileMaps feeds every configured file-based map into the state tracker.
func (a *App) loadFileMaps() {
	for _, mc := range a.Config.Maps {
		if mc.File == "" {
			continue
		}
		path := mc.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.DataDir, path)
		}
		payload, err := atlas.ParseMapFile(path)
		if err != nil {
			log.Printf("Error loading map %s from %s: %v", mc.ID, path, err)
			continue
		}
		if payload.MapID == "" {
			payload.MapID = mc.ID
		}
		if err := a.StateTracker.UpdateMap(payload); err != nil {
			log.Printf("Error indexing map %s: %v", mc.ID, err)
		}
	}
}

// RunBuild builds and persists sparse indexes for all file-based maps.
func (a *App) RunBuild() error {
	if err := a.setup(); err != nil {
		return err
	}
	a.loadFileMaps()
	if !a.StateTracker.HasMaps() {
		return fmt.Errorf("no maps could be indexed")
	}
	for _, state := range a.StateTracker.States() {
		log.Printf("Map %s: fingerprint %s, %d labels", state.MapID, state.Fingerprint[:12], len(state.Labels))
	}
	return nil
}

// RunService starts the MQTT subscriber and/or HTTP server and blocks until
// a termination signal arrives.
func (a *App) RunService() error {
	if err := a.setup(); err != nil {
		return err
	}
	a.loadFileMaps()

	if a.MQTTMode {
		client, err := atlas.InitMQTT(a.Config, func(mapID string, payload *atlas.MapPayload, err error) {
			if err != nil {
				log.Printf("Error receiving payload for map %s: %v", mapID, err)
				return
			}
			if err := a.StateTracker.UpdateMap(payload); err != nil {
				log.Printf("Error indexing payload for map %s: %v", mapID, err)
			}
		})
		if err != nil {
			return fmt.Errorf("starting MQTT: %w", err)
		}
		a.MQTTClient = client

		if client != nil {
			a.Publisher = atlas.NewPublisher(client.Client(), a.Config.MQTT.PublishPrefix)
			a.StateTracker.OnBuild(func(state atlas.MapState) {
				if err := a.Publisher.PublishMapState(state); err != nil {
					log.Printf("Error publishing state for map %s: %v", state.MapID, err)
				}
			})
		}
	}

	var server *http.Server
	if a.HTTPMode {
		server = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.HTTPPort),
			Handler:           newHTTPServer(a.StateTracker, a.Warper),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("HTTP server listening on :%d", a.HTTPPort)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down", sig)

	if server != nil {
		server.Close()
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	return nil
}
