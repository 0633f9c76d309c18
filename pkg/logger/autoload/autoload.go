// Package autoload configures the global logger as an import side effect.
package autoload

import (
	configx "github.com/bancoagil/assistant/pkg/config"
	logx "github.com/bancoagil/assistant/pkg/logger"
)

func init() {
	conf := configx.MustNew[logx.Config]("LOG")
	logx.Init(*conf)
}
