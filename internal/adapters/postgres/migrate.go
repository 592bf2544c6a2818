package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Migration directions.
const (
	Up   = "up"
	Down = "down"
)

// Migrate applies every <name>.<direction>.sql file in dir, in name order
// for up and reverse order for down. It returns the files applied, which on
// error are the ones that ran before the failing file.
func Migrate(ctx context.Context, db *DB, dir, direction string) ([]string, error) {
	if direction != Up && direction != Down {
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*."+direction+".sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s migrations in %s", direction, dir)
	}
	sort.Strings(files)
	if direction == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	applied := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			return applied, fmt.Errorf("exec %s: %w", f, err)
		}
		applied = append(applied, f)
	}
	return applied, nil
}
