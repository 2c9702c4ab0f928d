package contexts

import (
	"github.com/veldt/feedgest/lib/ingest"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewContextRegistry wires up every context type that declares the
// aggregate-notification capability. Feeds whose context type is missing
// here are skipped by the engine.
func NewContextRegistry(lc fx.Lifecycle, log *zap.Logger, db *gorm.DB) ingest.ContextRegistry {
	base := base{log, db}
	return ingest.ContextRegistry{
		"course": &courseContext{base},
	}
}

type base struct {
	log *zap.Logger
	db  *gorm.DB
}
