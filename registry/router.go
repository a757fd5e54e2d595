package registry

import (
	"path"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Router composes the routes of every registered feature, enabled or not,
// each mounted under its subpath. Features are mounted in id order; a
// feature whose subpath is already taken is skipped and logged.
//
// The router is rebuilt on every call and reflects the features registered
// at that time.
func (r *Registry) Router() chi.Router {
	r.mu.RLock()
	defer r.mu.RUnlock()

	router := chi.NewRouter()
	mounted := make(map[string]string, len(r.features))
	for _, id := range r.sortedIDs() {
		f := r.features[id]
		log := r.log.With(zap.String("id", id))

		h := f.Router()
		if h == nil {
			log.Warn("Feature has no routes; not mounting")
			continue
		}

		p := normalizeSubpath(f.Subpath())
		if owner, ok := mounted[p]; ok {
			log.Warn("Feature subpath already mounted; not mounting",
				zap.String("subpath", p),
				zap.String("mounted_by", owner))
			continue
		}

		router.Mount(p, h)
		mounted[p] = id
		log.Debug("Mounted feature routes", zap.String("subpath", p))
	}
	return router
}

// normalizeSubpath returns p with a leading slash and no trailing slash;
// the empty path becomes "/".
func normalizeSubpath(p string) string {
	return path.Clean("/" + p)
}
