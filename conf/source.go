package conf

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
)

// Open loads a Kratos config from a file or directory. The caller owns the
// returned config and must Close it.
func Open(path string) (config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration path is empty")
	}
	cfg := config.New(config.WithSource(file.NewSource(path)))
	if err := cfg.Load(); err != nil {
		_ = cfg.Close()
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	return cfg, nil
}
