// Package logger builds the zap logger shared by the server, services and worker.
package logger

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names so log lines from different components line up.
const (
	FieldComponent  = "component"
	FieldThemeID    = "theme_id"
	FieldQuestionID = "question_id"
	FieldItemID     = "item_id"
	FieldItemType   = "item_type"
	FieldMethod     = "method"
	FieldCacheKey   = "cache_key"
	FieldCount      = "count"
	FieldProcessed  = "processed"
	FieldFailed     = "failed"
	FieldSkipped    = "skipped"
	FieldDurationMS = "duration_ms"
	FieldJobID      = "job_id"
)

// New returns a development logger for env "dev" and a JSON production logger otherwise.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build zap logger failed")
	}
	return log, nil
}
