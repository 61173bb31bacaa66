package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/franckalain/halalscan/internal/config"
	"github.com/franckalain/halalscan/internal/database"
	"github.com/franckalain/halalscan/internal/ml"
	"github.com/franckalain/halalscan/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	serveConfig string
	servePort   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan server",
	Long:  "Serves the websocket and REST API with the configured history store and prediction model.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveConfig, "config", "", "Configuration file (default: $HALALSCAN_CONFIG or config/config.json)")
	f.StringVarP(&servePort, "port", "p", "", "Override the configured port")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	path := serveConfig
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if servePort != "" {
		cfg.Server.Port = servePort
	}

	if cfg.ECodes.TablePath != "" && tablePath == "" {
		tablePath = cfg.ECodes.TablePath
	}
	table, err := loadTable()
	if err != nil {
		return fmt.Errorf("failed to load e-code table: %w", err)
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	model, err := ml.NewModel(cfg.ML.Type, cfg.ML.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to create ML model: %w", err)
	}
	if err := model.Load(context.Background()); err != nil {
		return fmt.Errorf("failed to load ML model: %w", err)
	}

	return server.New(db, model, table, cfg.Server.Debug).Start(cfg.Server.Port, cfg.Server.StaticDir)
}
