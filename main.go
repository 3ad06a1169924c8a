package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/alexflint/go-arg"

	"github.com/tracktide/trackstr/app"
	"github.com/tracktide/trackstr/pkg/interrupt"
	"github.com/tracktide/trackstr/pkg/memstore"
	"github.com/tracktide/trackstr/pkg/persist"
	"github.com/tracktide/trackstr/pkg/persist/badgerdb"
	"github.com/tracktide/trackstr/pkg/persist/flatfile"
	"github.com/tracktide/trackstr/pkg/slog"
)

var AppName = "trackstr"

var log, chk = slog.New(os.Stderr)

const configFileName = "config.json"

func main() {
	var conf app.Config
	arg.MustParse(&conf)
	var err error
	var home string
	if home, err = os.UserHomeDir(); chk.F(err) {
		os.Exit(1)
	}
	dataDir := filepath.Join(home, "."+conf.Profile)
	if err = os.MkdirAll(dataDir, 0700); chk.F(err) {
		os.Exit(1)
	}
	log.D.F("using profile directory: '%s'", dataDir)
	cfgPath := filepath.Join(dataDir, configFileName)
	if conf.InitCfgCmd != nil {
		if len(conf.Kinds) == 0 {
			conf.Kinds = []int{app.DefaultContentKind}
		}
		if err = conf.Save(cfgPath); chk.F(err) {
			os.Exit(1)
		}
		log.I.F("wrote configuration to %s", cfgPath)
		return
	}
	// a saved configuration overrides the command line defaults
	if _, err = os.Stat(cfgPath); err == nil {
		if err = conf.Load(cfgPath); chk.F(err) {
			os.Exit(1)
		}
	}
	slog.SetLogLevelString(conf.LogLevel)
	if len(conf.Kinds) == 0 {
		conf.Kinds = []int{app.DefaultContentKind}
	}

	db := memstore.New(conf.Kinds...)
	if err = db.Init(); chk.F(err) {
		os.Exit(1)
	}
	var back persist.Backend
	switch conf.Persistence {
	case "flatfile":
		back = &flatfile.FlatFileBackend{
			Path: filepath.Join(dataDir, "store"),
		}
	case "badger":
		back = &badgerdb.BadgerBackend{
			Path: filepath.Join(dataDir, "badger"),
		}
	case "none", "":
	default:
		log.F.F("unknown persistence backend '%s'", conf.Persistence)
		os.Exit(1)
	}
	if back != nil {
		if err = back.Init(); chk.F(err) {
			os.Exit(1)
		}
		if err = db.UsePersistence(back); chk.F(err) {
			os.Exit(1)
		}
	}

	c, cancel := context.WithCancel(context.Background())
	rl := app.NewRelay(c)
	rl.Whitelist = conf.Whitelist
	rl.KindAccepted = db.KindAccepted
	rl.RejectEvent = append(rl.RejectEvent,
		app.RestrictToSpecifiedKinds(conf.Kinds...),
		app.PreventLargeTags(conf.MaxTagValueLen),
	)
	rl.StoreEvent = append(rl.StoreEvent, db.SaveEvent)
	rl.QueryEvents = append(rl.QueryEvents, db.QueryEvents)
	rl.ProcessDelete = db.ProcessDelete

	if conf.ExportCmd != nil {
		rl.Export(db.Iterate(), conf.ExportCmd.ToFile)
		db.Close()
		return
	}
	if conf.ImportCmd != nil {
		rl.Import(conf.ImportCmd.FromFile)
		db.Close()
		return
	}

	interrupt.AddHandler(func() {
		log.I.Ln("shutting down relay")
		cancel()
		rl.Shutdown(context.Background())
		db.Close()
	})
	log.I.F("%s %s accepting kinds %v", AppName, app.Version, conf.Kinds)
	if err = rl.Start(conf.Listen); chk.F(err) {
		os.Exit(1)
	}
	<-interrupt.HandlersDone
}
