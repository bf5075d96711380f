package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/denismitr/lime"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	keyHex   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "lime",
	Short: "Embedded document store with encrypted table snapshots",
	Long:  "Lime stores schemaless records in named tables, one optionally encrypted snapshot file per table.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", lime.DefaultDataDir, "directory holding table snapshots")
	rootCmd.PersistentFlags().StringVar(&keyHex, "key", "", "hex encoded 256 bit encryption key")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func setupLogger() *slog.Logger {
	ll := &slog.LevelVar{}
	switch logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		ll.Set(slog.LevelInfo)
	}

	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	return logger
}

func openStore() (*lime.Store, error) {
	cfg := lime.Config{DataDir: dataDir}

	if keyHex != "" {
		key, err := lime.ParseKey(keyHex)
		if err != nil {
			return nil, err
		}
		cfg.EncryptionKey = key
	}

	return lime.Open(cfg)
}

// withStore opens the store, runs fn and closes the store again. Close
// flushes dirty tables, so its error fails the command unless fn already
// did.
func withStore(fn func(*lime.Store) error) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if err := fn(store); err != nil {
		_ = store.Close()
		return err
	}

	return store.Close()
}

func printRecord(rec *lime.Record) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(b))
	return nil
}
