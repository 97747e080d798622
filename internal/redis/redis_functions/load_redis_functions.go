package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var libraries embed.FS

// Loader is the slice of redis.Cmdable needed to install libraries.
type Loader interface {
	FunctionLoadReplace(ctx context.Context, code string) *redis.StringCmd
}

// LoadAll installs every embedded Lua library, replacing older versions.
func LoadAll(ctx context.Context, rdb Loader) error {
	return load(ctx, rdb, libraries)
}

func load(ctx context.Context, rdb Loader, src fs.FS) error {
	names, err := fs.Glob(src, "*.lua")
	if err != nil {
		return fmt.Errorf("list lua libraries: %w", err)
	}
	for _, name := range names {
		code, err := fs.ReadFile(src, name)
		if err != nil {
			return err
		}
		lib, err := rdb.FunctionLoadReplace(ctx, string(code)).Result()
		if err != nil {
			return fmt.Errorf("load lua %s: %w", path.Base(name), err)
		}
		zap.L().Info("redis.function_loaded", zap.String("file", name), zap.String("library", lib))
	}
	return nil
}
