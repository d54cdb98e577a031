package source

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kinemo/motionrec/internal/config"
)

// Open builds the configured source. The returned close function releases
// any file the source reads from.
func Open(cfg config.SourceConfig, logger *slog.Logger) (Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Type {
	case "jsonl", "":
		if cfg.Input == "" || cfg.Input == "-" {
			return NewJSONLines(os.Stdin, cfg.Realtime, logger), noop, nil
		}
		f, err := os.Open(cfg.Input)
		if err != nil {
			return nil, noop, fmt.Errorf("open frames %s: %w", cfg.Input, err)
		}
		return NewJSONLines(f, cfg.Realtime, logger), closer(f), nil
	case "websocket":
		return NewWebSocket(cfg.URL, logger), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}

func closer(c io.Closer) func() error {
	return c.Close
}
