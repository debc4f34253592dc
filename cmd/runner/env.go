package runner

import (
	"tradingbot/src/cache"
	"tradingbot/src/connectors"
	"tradingbot/src/engine"
	"tradingbot/src/executors"
	"tradingbot/src/notify"
	"tradingbot/src/risk"
	"tradingbot/src/streak"
)

// Env gathers the environment configuration of every package a run touches.
type Env struct {
	Engine           engine.Config
	Risk             risk.Config
	Streak           streak.Config
	Connectors       connectors.Config
	Notify           notify.Config
	Cache            cache.Config
	Executor         executors.Config
	CombinationsFile string
}

func LoadEnv() Env {
	return Env{
		Engine:           engine.GetConfig(),
		Risk:             risk.GetConfig(),
		Streak:           streak.GetConfig(),
		Connectors:       connectors.GetConfig(),
		Notify:           notify.GetConfig(),
		Cache:            cache.GetConfig(),
		Executor:         executors.GetConfig(),
		CombinationsFile: GetConfig().CombinationsFile,
	}
}
