package engine

// New builds an Engine. Nil Clock and Locker default to time.Now and an
// in-process lock.
func New(cfg Config, d Deps) *Engine {
	return newEngine(cfg, d)
}
