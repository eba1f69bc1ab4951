// Package config loads and validates the declarative YAML document that
// describes a run: global settings, logging, and the target hosts with
// their software install lists.
package config

// Document is the raw shape of the configuration file, unmarshalled
// directly from YAML before expansion or validation.
type Document struct {
	General GeneralDoc `yaml:"general"`
	Log     LogDoc     `yaml:"log"`
	Nodes   []NodeDoc  `yaml:"nodes"`
}

// GeneralDoc holds run-wide settings.
type GeneralDoc struct {
	DataDir            string `yaml:"data_dir"`
	MaxConcurrentNodes int    `yaml:"max_concurrent_nodes"`
}

// LogDoc configures the operational logger.
type LogDoc struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// NodeDoc is one target host entry.
type NodeDoc struct {
	Name      string       `yaml:"name"`
	Host      string       `yaml:"host"`
	Port      int          `yaml:"port"`
	OwnerUser string       `yaml:"owner_user"`
	OwnerPass string       `yaml:"owner_pass"`
	OwnerKey  string       `yaml:"owner_key"`
	SuperUser string       `yaml:"super_user"`
	SuperPass string       `yaml:"super_pass"`
	SuperKey  string       `yaml:"super_key"`
	Install   []SoftwareDoc `yaml:"install"`
}

// SoftwareDoc is one software package entry under a node's install list.
type SoftwareDoc struct {
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	InstallPath string         `yaml:"install_path"`
	Source      string         `yaml:"source"`
	SourcePath  string         `yaml:"source_path"`
	Config      map[string]any `yaml:"config"`
}

const (
	defaultMaxConcurrentNodes = 10
	maxMaxConcurrentNodes     = 10
	defaultPort               = 22
	defaultSuperUser          = "root"
	defaultLogLevel           = "INFO"
	defaultDataDir            = "./deploy_data"
	defaultLogDir             = "./deploy_data/log"
)

func (d *Document) applyDefaults() {
	if d.General.DataDir == "" {
		d.General.DataDir = defaultDataDir
	}
	if d.General.MaxConcurrentNodes == 0 {
		d.General.MaxConcurrentNodes = defaultMaxConcurrentNodes
	}
	if d.General.MaxConcurrentNodes > maxMaxConcurrentNodes {
		d.General.MaxConcurrentNodes = maxMaxConcurrentNodes
	}
	if d.Log.Dir == "" {
		d.Log.Dir = defaultLogDir
	}
	if d.Log.Level == "" {
		d.Log.Level = defaultLogLevel
	}
	for i := range d.Nodes {
		if d.Nodes[i].Port == 0 {
			d.Nodes[i].Port = defaultPort
		}
		if d.Nodes[i].SuperUser == "" {
			d.Nodes[i].SuperUser = defaultSuperUser
		}
		for j := range d.Nodes[i].Install {
			if d.Nodes[i].Install[j].Source == "" {
				d.Nodes[i].Install[j].Source = "repository"
			}
		}
	}
}
