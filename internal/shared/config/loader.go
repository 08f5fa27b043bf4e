package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// loader reads typed settings from the environment. A set but unparseable value falls back to
// the default and is recorded, so Load can report it instead of running with a surprise.
type loader struct {
	errs []error
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (l *loader) invalid(key, val, want string) {
	l.errs = append(l.errs, fmt.Errorf("%s=%q: want %s", key, val, want))
}

func (l *loader) str(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}

func (l *loader) oneOf(key, def string, allowed ...string) string {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	if !slices.Contains(allowed, v) {
		l.invalid(key, v, "one of "+strings.Join(allowed, ", "))
		return def
	}
	return v
}

func (l *loader) csv(key string, def []string) []string {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (l *loader) positiveInt(key string, def int) int {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		l.invalid(key, v, "a positive integer")
		return def
	}
	return n
}

func (l *loader) boolean(key string, def bool) bool {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.invalid(key, v, "a boolean")
		return def
	}
	return b
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		l.invalid(key, v, "a positive duration such as 5s")
		return def
	}
	return d
}
