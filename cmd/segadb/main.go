package main

import (
	"flag"
	"os"

	"github.com/segadb/segadb/internal/config"
	"github.com/segadb/segadb/internal/server"
	"github.com/segadb/segadb/pkg"
)

func main() {
	cwd, _ := os.Getwd()

	configPath := flag.String("config", "", "path to yaml config file")
	dbWritePath := flag.String("db", cwd+"/db.segadb", "path to save db data")
	inMem := flag.Bool("m", false, "don't persist db")
	port := flag.Int("port", 0, "listening port")

	flag.Parse()

	var cfg *config.Config
	if len(*configPath) > 0 {
		loaded, err := config.Load(*configPath)
		if err != nil {
			pkg.FatalLog(err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.Storage.Path = *dbWritePath
		cfg.Storage.InMemory = *inMem
	}

	// -port beats the config file when both are given
	if *port != 0 {
		cfg.Server.Port = *port
	}

	writeSettings := server.NewWriteSettings(
		cfg.Storage.Path, cfg.Storage.InMemory, cfg.Storage.Compress, cfg.Storage.WriteInterval)
	srv := server.New(cfg.DBName, writeSettings, server.LogOptions{
		ShouldLog:     cfg.Server.Log,
		ShowDebugLogs: cfg.Server.Debug,
	})
	srv.Listen(cfg.Server.Port)
}
