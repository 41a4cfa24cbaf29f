// Package version хранит сведения о сборке витрины.
// Значения проставляются через -ldflags "-X .../internal/version.version=...",
// без них commit и date берутся из VCS-данных go build.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"
)

const unknown = "unknown"

var (
	version = "dev"
	commit  = unknown
	date    = unknown
)

// Build: версия сборки витрины.
type Build struct {
	Version string
	Commit  string
	Date    string
	// Dirty: сборка из рабочей копии с незакоммиченными изменениями.
	Dirty bool
}

func (b Build) String() string {
	commit := b.Commit
	if b.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("storefront %s (%s, %s)", b.Version, commit, b.Date)
}

var (
	once    sync.Once
	current Build
)

// Current возвращает сведения о сборке; вычисляются один раз.
func Current() Build {
	once.Do(func() {
		info, _ := debug.ReadBuildInfo()
		current = resolve(Build{Version: version, Commit: commit, Date: date}, info)
	})
	return current
}

// resolve дополняет незаданные через ldflags поля настройками vcs.* из BuildInfo.
func resolve(b Build, info *debug.BuildInfo) Build {
	if info == nil {
		return b
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if b.Commit == unknown && setting.Value != "" {
				b.Commit = shortRevision(setting.Value)
			}
		case "vcs.time":
			if b.Date == unknown && setting.Value != "" {
				b.Date = setting.Value
			}
		case "vcs.modified":
			b.Dirty = setting.Value == "true"
		}
	}
	return b
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// GetVersion: версия для health-ответов.
func GetVersion() string { return Current().Version }

// Fields: поля сборки для стартового лога.
func Fields() log.Fields {
	b := Current()
	return log.Fields{
		"version": b.Version,
		"commit":  b.Commit,
		"date":    b.Date,
		"dirty":   b.Dirty,
	}
}
