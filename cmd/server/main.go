package main

import (
	"context"
	"flag"
	"log"

	"github.com/franckalain/halalscan/internal/config"
	"github.com/franckalain/halalscan/internal/database"
	"github.com/franckalain/halalscan/internal/ecodes"
	"github.com/franckalain/halalscan/internal/ml"
	"github.com/franckalain/halalscan/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Environment from .env, if present
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database
	db, err := database.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Reference table
	table := ecodes.Default()
	if cfg.ECodes.TablePath != "" {
		if table, err = ecodes.Load(cfg.ECodes.TablePath); err != nil {
			log.Fatal("Failed to load e-code table:", err)
		}
	}
	log.Printf("Using e-code table with %d entries", table.Len())

	// Initialize ML service
	model, err := ml.NewModel(cfg.ML.Type, cfg.ML.ConfigPath)
	if err != nil {
		log.Fatal("Failed to create ML model:", err)
	}

	if err := model.Load(context.Background()); err != nil {
		log.Fatal("Failed to load ML model:", err)
	}

	// Initialize and start server
	srv := server.New(db, model, table, cfg.Server.Debug)
	if err := srv.Start(cfg.Server.Port, cfg.Server.StaticDir); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
