package main

import (
	"log/slog"

	"github.com/df-mc/dragonfly/server/player/chat"

	"github.com/modl-gg/minecraft-sub001/modl"
)

// init ...
func init() {
	chat.Global.Subscribe(chat.StdoutSubscriber{})
}

// main ...
func main() {
	conf, err := modl.ReadConfig()
	if err != nil {
		panic(err)
	}

	level, err := modl.ParseLogLevel(conf.Modl.LogLevel)
	if err != nil {
		panic(err)
	}
	slog.SetLogLoggerLevel(level)
	log := slog.Default()

	m, err := modl.NewModl(log, conf)
	if err != nil {
		panic(err)
	}

	m.Start()
}
