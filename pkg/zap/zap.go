/*

Package `zap` wraps Zap logging.

We use the convenience sugared logger `Levelw(msg, kv...)` functions
everywhere; components declare a package-local `Logger` interface with the
subset of level functions that they need.

*/
package zap

import (
	"go.uber.org/zap"
)

type Logger = zap.SugaredLogger

func NewProduction() (*Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func NewDevelopment() (*Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
