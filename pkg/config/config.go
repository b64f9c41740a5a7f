package config

import (
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	Server     Server
	Monitoring Monitoring
	Document   Document
	Storage    Storage
	Webrtc     Webrtc
	Debug      bool
}

type Server struct {
	Address string `fig:"address" default:":8000"`
	Origin  string `fig:"origin"`
	Https   bool   `fig:"https"`
	Tls     Tls
}

type Tls struct {
	Address   string `fig:"address" default:":443"`
	Domain    string `fig:"domain"`
	HttpsCert string `fig:"httpsCert"`
	HttpsKey  string `fig:"httpsKey"`
}

type Monitoring struct {
	Port             int    `fig:"port" default:"6601"`
	URLPrefix        string `fig:"urlPrefix" default:"/syncpad"`
	MetricEnabled    bool   `fig:"metricEnabled"`
	ProfilingEnabled bool   `fig:"profilingEnabled"`
}

func (m Monitoring) IsEnabled() bool { return m.MetricEnabled || m.ProfilingEnabled }

type Document struct {
	// FlushInterval is how often room snapshots are handed to the store.
	FlushInterval time.Duration `fig:"flushInterval" default:"2s"`
}

type Storage struct {
	// Path of the sqlite snapshot database; empty disables persistence.
	Path string `fig:"path"`
}

type Webrtc struct {
	IceServers []IceServer
	LogLevel   int `fig:"logLevel" default:"3"`
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (c *Config) AddFlags(fs *pflag.FlagSet) *Config {
	fs.StringVarP(&c.Server.Address, "address", "a", c.Server.Address, "Server address")
	fs.IntVarP(&c.Monitoring.Port, "monitoring.port", "", c.Monitoring.Port, "Monitoring server port")
	fs.StringVarP(&c.Storage.Path, "storage", "", c.Storage.Path, "Snapshot database path")
	fs.BoolVarP(&c.Debug, "debug", "v", c.Debug, "Verbose logging")
	return c
}
