package main

import (
	"context"
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"

	"github.com/denismitr/lime"
	"github.com/denismitr/lime/internal/server"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	serveAddr        string
	serveEncrypted   bool
	serveMaxFileSize int64
	serveConfigPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the json http api server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "address to listen on")
	serveCmd.Flags().BoolVar(&serveEncrypted, "encrypted", false, "generate a fresh key and encrypt all tables with it")
	serveCmd.Flags().Int64Var(&serveMaxFileSize, "max-file-size", 0, "max snapshot size in bytes, 0 selects the default")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "yaml config file, explicit flags win over its values")

	rootCmd.AddCommand(serveCmd)
}

type serveConfig struct {
	Addr          string `yaml:"addr"`
	DataDir       string `yaml:"data_dir"`
	EncryptionKey string `yaml:"encryption_key"`
	MaxFileSize   int64  `yaml:"max_file_size"`
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := setupLogger()

	addr := serveAddr

	if serveConfigPath != "" {
		fc, err := loadServeConfig(serveConfigPath)
		if err != nil {
			return err
		}

		if fc.Addr != "" && !cmd.Flag("addr").Changed {
			addr = fc.Addr
		}
		if fc.DataDir != "" && !cmd.Flag("data-dir").Changed {
			dataDir = fc.DataDir
		}
		if fc.EncryptionKey != "" && !cmd.Flag("key").Changed {
			keyHex = fc.EncryptionKey
		}
		if fc.MaxFileSize != 0 && !cmd.Flag("max-file-size").Changed {
			serveMaxFileSize = fc.MaxFileSize
		}
	}

	cfg := lime.Config{DataDir: dataDir, MaxFileSize: serveMaxFileSize}

	switch {
	case serveEncrypted && keyHex != "":
		return errors.New("--encrypted generates a fresh key, it cannot be combined with --key")
	case serveEncrypted:
		key, err := lime.GenerateKey()
		if err != nil {
			return err
		}
		cfg.EncryptionKey = key
		log.Info("generated encryption key, save it to reopen this store", "key", hex.EncodeToString(key))
	case keyHex != "":
		key, err := lime.ParseKey(keyHex)
		if err != nil {
			return err
		}
		cfg.EncryptionKey = key
	}

	store, err := lime.Open(cfg)
	if err != nil {
		return err
	}

	log.Info("store opened", "data_dir", cfg.DataDir, "encrypted", len(cfg.EncryptionKey) > 0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := server.New(store, log).Run(ctx, addr)

	closeErr := store.Close()
	if closeErr != nil {
		log.Error("could not close store", "err", closeErr)
	}

	if runErr != nil {
		return runErr
	}

	return closeErr
}

func loadServeConfig(path string) (*serveConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read config file %s", path)
	}

	var fc serveConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, errors.Wrapf(err, "could not parse config file %s", path)
	}

	return &fc, nil
}
