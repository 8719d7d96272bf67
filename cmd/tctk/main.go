package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/V4T54L/tctk/internal/pkg/config"
	"github.com/V4T54L/tctk/internal/pkg/logger"
)

const defaultChannel = "thestreameast"

var (
	app        = kingpin.New("tctk", "Chat bot with rotating activity logs.")
	configPath = app.Flag("config", "Path to the YAML credentials file.").Envar("TWITCH_CREDENTIALS_PATH").Default("./config.yaml").String()

	runCmd      = app.Command("run", "Connect to chat and run the given features.")
	runChannel  = runCmd.Flag("channel", "Channel to join.").Short('c').Default(defaultChannel).String()
	runFeatures = runCmd.Arg("features", "Features to enable (default activity_log).").Strings()

	respondCmd     = app.Command("respond", "Answer the configured trigger message in chat.")
	respondChannel = respondCmd.Flag("channel", "Channel to join.").Short('c').Default(defaultChannel).String()

	archiveCmd      = app.Command("archive", "Move mirrored chat events from Redis into PostgreSQL.")
	archiveConsumer = archiveCmd.Flag("consumer", "Consumer name within the archive group (default hostname).").String()

	activityCmd       = app.Command("activity", "Inspect activity files.")
	activityLsCmd     = activityCmd.Command("ls", "List activity files, oldest first.")
	activityCatCmd    = activityCmd.Command("cat", "Print the snapshots of one activity file.")
	activityCatStart  = activityCatCmd.Arg("start", "Start time of the file (activity_<start>.json).").Required().Int64()
	activityCatRecord = activityCatCmd.Flag("records", "Print the activity records instead of the snapshots.").Bool()

	configCmd       = app.Command("config", "Manage the YAML credentials file.")
	configBackupCmd = configCmd.Command("backup", "Write a .back copy of the credentials file.")
)

func main() {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	switch command {
	case runCmd.FullCommand():
		features := *runFeatures
		if len(features) == 0 {
			features = []string{"activity_log"}
		}
		err = runBot(cfg, log, *runChannel, features)
	case respondCmd.FullCommand():
		err = runBot(cfg, log, *respondChannel, []string{"activity_log", "responder"})
	case archiveCmd.FullCommand():
		err = runArchive(cfg, log, *archiveConsumer)
	case activityLsCmd.FullCommand():
		err = listActivity(os.Stdout, cfg.ActivityDir)
	case activityCatCmd.FullCommand():
		err = catActivity(os.Stdout, cfg.ActivityDir, *activityCatStart, *activityCatRecord)
	case configBackupCmd.FullCommand():
		var path string
		path, err = cfg.Backup()
		if err == nil {
			fmt.Println(path)
		}
	}

	if err != nil {
		log.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}
