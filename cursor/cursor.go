package cursor

import (
	"log/slog"

	"deedles.dev/wlcomp/internal/debug"
)

// Load returns an image for each of names, in order. Images come from
// the named theme when it has them and from the built-in set
// otherwise. Names with neither are left nil.
func Load(theme string, size int, names []string, log *slog.Logger) []*Image {
	log = debug.Logger(log)

	t, err := LoadTheme(theme, size)
	if err != nil {
		log.Warn("failed to load cursor theme", "theme", theme, "err", err)
	}

	images := make([]*Image, len(names))
	for i, name := range names {
		if img, ok := t.Image(name); ok {
			images[i] = img
			continue
		}

		img, err := Fallback(name)
		if err != nil {
			log.Warn("no image for cursor", "name", name, "err", err)
			continue
		}
		log.Debug("using built-in cursor", "name", name)
		images[i] = img
	}

	return images
}
