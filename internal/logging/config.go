package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const envVar = "LOGLEVEL"

type tagLevel struct {
	tag   string
	level Level
}

var (
	tagLevelsMu sync.RWMutex
	tagLevels   []tagLevel
)

func init() {
	if err := Configure(os.Getenv(envVar)); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", envVar, err)
	}
}

// Configure applies comma-separated "tag=level" directives, e.g.
// "debug,cut=trace,server=warn". A directive without "tag=" sets the default
// level. Invalid directives are skipped and reported in the returned error;
// valid ones still take effect. Loggers already derived keep their level.
func Configure(directives string) error {
	var bad []string
	for _, d := range strings.Split(directives, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		level, err := parseLevel(v[len(v)-1])
		if err != nil {
			bad = append(bad, fmt.Sprintf("'%s': %v", d, err))
			continue
		}
		tagLevelsMu.Lock()
		if len(v) == 1 {
			defaultLevel = level
			DefaultLogger.Level = level
		} else {
			tagLevels = append(tagLevels, tagLevel{v[0], level})
		}
		tagLevelsMu.Unlock()
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid directives: %s", strings.Join(bad, ", "))
	}
	return nil
}

func determineLevel(tag string, fallback Level) Level {
	tagLevelsMu.RLock()
	defer tagLevelsMu.RUnlock()

	// Later directives win.
	for i := len(tagLevels) - 1; i >= 0; i-- {
		if tagLevels[i].tag == tag {
			return tagLevels[i].level
		}
	}
	return fallback
}

// levelOf reads the level of a logger that Configure may rewrite.
func levelOf(log *Logger) Level {
	tagLevelsMu.RLock()
	defer tagLevelsMu.RUnlock()
	return log.Level
}

func getDefaultLevel() Level {
	tagLevelsMu.RLock()
	defer tagLevelsMu.RUnlock()
	return defaultLevel
}
