package logger

import (
	"go.uber.org/zap"
)

// New returns a development logger unless env is "production", where the
// JSON production encoder is used instead.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
