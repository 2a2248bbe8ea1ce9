package xlsx

import (
	"log/slog"
	"runtime"
)

// Options configures loading and saving a workbook.
type Options struct {
	// Concurrency bounds how many worksheet parts are parsed or serialized
	// at once. Values below 2 process sheets one at a time.
	Concurrency int

	// Logger receives diagnostics about tolerated irregularities and save
	// decisions. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns options that use every available CPU.
func DefaultOptions() Options {
	return Options{Concurrency: runtime.GOMAXPROCS(0)}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (o Options) limit() int {
	return max(1, o.Concurrency)
}
