package lime

import "github.com/pkg/errors"

var ErrInvalidConfig = errors.New("invalid configuration")

const DefaultDataDir = "./data"
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

type Config struct {
	// DataDir holds one snapshot file per table.
	DataDir string
	// EncryptionKey enables encryption at rest when set. Must be exactly
	// KeySize bytes.
	EncryptionKey []byte
	// MaxFileSize rejects snapshots larger than this many bytes on save.
	// Zero selects DefaultMaxFileSize.
	MaxFileSize int64
}

func (cfg *Config) applyDefaults() error {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}

	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	if cfg.MaxFileSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max file size %d is negative", cfg.MaxFileSize)
	}

	if n := len(cfg.EncryptionKey); n != 0 && n != KeySize {
		return errors.Wrapf(ErrInvalidKeySize, "got %d bytes", n)
	}

	return nil
}
