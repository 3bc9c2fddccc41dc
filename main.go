package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/kwv/voxmesh/atlas"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	dataDir    = flag.String("data-dir", ".", "Directory containing map payload JSON files")
	cacheDir   = flag.String("cache-dir", "", "Sparse index cache directory (overrides config)")
	parseOnly  = flag.Bool("parse-only", false, "Parse payload files and exit (test mode)")
	buildOnly  = flag.Bool("build", false, "Build sparse indexes from payload files and exit")
	mqttMode   = flag.Bool("mqtt", false, "Subscribe to map payload topics via MQTT")
	httpMode   = flag.Bool("http", false, "Enable HTTP server for map and qualification endpoints")
	httpPort   = flag.Int("http-port", 8080, "HTTP server port (default 8080)")
)

func main() {
	flag.Parse()
	fmt.Printf("voxmesh version: %s\n", Version)

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: *configFile,
		DataDir:    *dataDir,
		CacheDir:   *cacheDir,
		HTTPPort:   *httpPort,
		MQTTMode:   *mqttMode,
		HTTPMode:   *httpMode,
	})

	if *parseOnly {
		runParseOnly()
		return
	}

	if *buildOnly {
		if err := app.RunBuild(); err != nil {
			log.Fatalf("Build failed: %v", err)
		}
		return
	}

	if *mqttMode || *httpMode {
		if err := app.RunService(); err != nil {
			log.Fatalf("Service failed: %v", err)
		}
		return
	}

	fmt.Println("voxmesh service starting...")
	fmt.Println("Use --parse-only to test payload parsing")
	fmt.Println("Use --build to build and persist sparse indexes")
	fmt.Println("Use --mqtt to subscribe to map payload topics")
	fmt.Println("Use --http to serve map and qualification endpoints")
	fmt.Println("Use --mqtt --http to run both together")
}

// runParseOnly finds and parses all map payload exports under the data dir.
func runParseOnly() {
	pattern := filepath.Join(*dataDir, "*.voxmap.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		log.Fatalf("Error finding payload files: %v", err)
	}
	if len(files) == 0 {
		log.Fatal("No *.voxmap.json files found")
	}

	for _, path := range files {
		payload, err := atlas.ParseMapFile(path)
		if err != nil {
			log.Printf("Error parsing %s: %v", path, err)
			continue
		}
		if err := payload.Validate(0); err != nil {
			log.Printf("Invalid payload %s: %v", path, err)
			continue
		}
		fmt.Printf("%s: map %s in space %s, grid %v, %d labels\n",
			filepath.Base(path), payload.MapID, payload.Space, payload.Shape, len(payload.Labels))
	}
}
