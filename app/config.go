package app

import (
	"encoding/json"
	"errors"
	"os"
)

type ExportCmd struct {
	ToFile string `arg:"-f,--tofile" help:"write to file instead of stdout"`
}

type ImportCmd struct {
	FromFile []string `arg:"-f,--fromfile,separate" help:"read from files instead of stdin (can use flag repeatedly for multiple files)"`
}

type InitCfg struct{}

type Config struct {
	ExportCmd  *ExportCmd `arg:"subcommand:export" json:"-" help:"export stored events as line structured JSON"`
	ImportCmd  *ImportCmd `arg:"subcommand:import" json:"-" help:"import events from line structured JSON"`
	InitCfgCmd *InitCfg   `arg:"subcommand:initcfg" json:"-" help:"initialize relay configuration files"`
	Listen     string     `arg:"-l,--listen" default:"0.0.0.0:3334" json:"listen" help:"network address to listen on"`
	Profile    string     `arg:"-p,--profile" json:"-" default:"trackstr" help:"profile name to use for storage"`
	// Kinds is the set of content event kinds the relay stores; the
	// deletion kind (5) is always accepted in addition.
	Kinds []int `arg:"-k,--kind,separate" json:"kinds" help:"content event kinds accepted by the relay (can use flag repeatedly)"`
	// Persistence selects the durable backend for the event store.
	Persistence string `arg:"-e,--persistence" default:"flatfile" json:"persistence" help:"select durable persistence backend [none,flatfile,badger]"`
	// Whitelist permits ONLY inbound connections from specified IP
	// addresses.
	Whitelist []string `arg:"-w,--whitelist,separate" json:"ip_whitelist" help:"IP addresses that are only allowed to access"`
	// MaxTagValueLen caps indexable tag value sizes on accepted events.
	MaxTagValueLen int    `arg:"--maxtagvaluelen" default:"1024" json:"max_tag_value_len" help:"maximum length of indexable tag values on accepted events"`
	LogLevel       string `arg:"--loglevel" default:"info" help:"set log level [off,fatal,error,warn,info,debug,trace] (can also use LOGLEVEL environment variable)"`
}

// DefaultContentKind is stored when no --kind is given.
const DefaultContentKind = 4100

func (c *Config) Save(filename string) (err error) {
	if c == nil {
		err = errors.New("cannot save nil relay config")
		log.E.Ln(err)
		return
	}
	var b []byte
	if b, err = json.MarshalIndent(c, "", "    "); chk.E(err) {
		return
	}
	if err = os.WriteFile(filename, b, 0600); chk.E(err) {
		return
	}
	return
}

func (c *Config) Load(filename string) (err error) {
	if c == nil {
		err = errors.New("cannot load into nil config")
		chk.E(err)
		return
	}
	var b []byte
	if b, err = os.ReadFile(filename); err != nil {
		return
	}
	if err = json.Unmarshal(b, c); chk.E(err) {
		return
	}
	return
}
