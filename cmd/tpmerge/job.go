package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/canlog/tpmerge/internal/can"
	"github.com/canlog/tpmerge/internal/canlog"
	"github.com/canlog/tpmerge/internal/pipeline"
	"github.com/canlog/tpmerge/internal/storage"
	"github.com/canlog/tpmerge/internal/tp"
)

// jobFile is the YAML job description.
type jobFile struct {
	Input struct {
		Path     string `yaml:"path"`
		Format   string `yaml:"format"` // csv|candump
		S3       bool   `yaml:"s3"`
		Base     string `yaml:"base"`
		Endpoint string `yaml:"endpoint"`
		Key      string `yaml:"key"`
		Secret   string `yaml:"secret"`
		CACert   string `yaml:"caCert"`
	} `yaml:"input"`
	Protocol struct {
		Type      string   `yaml:"type"` // uds|nmea|j1939
		BAMID     string   `yaml:"bamId"`
		TargetIDs []string `yaml:"targetIds"`
	} `yaml:"protocol"`
	Output struct {
		Snapshot string `yaml:"snapshot"`
	} `yaml:"output"`
	Influx struct {
		Host   string `yaml:"host"`
		Token  string `yaml:"token"`
		Org    string `yaml:"org"`
		Bucket string `yaml:"bucket"`
	} `yaml:"influx"`
}

func loadJobFile(path string) (*jobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("job file: %w", err)
	}
	var jf jobFile
	if err := yaml.Unmarshal(data, &jf); err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}
	if err := jf.validate(); err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}
	return &jf, nil
}

func (jf *jobFile) validate() error {
	if jf.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}
	switch canlog.Format(jf.Input.Format) {
	case canlog.FormatCSV, canlog.FormatCandump:
	default:
		return fmt.Errorf("invalid input.format: %q", jf.Input.Format)
	}
	switch jf.Protocol.Type {
	case "uds", "nmea":
		if jf.Protocol.BAMID != "" {
			return fmt.Errorf("protocol.bamId only applies to j1939")
		}
	case "j1939":
		if jf.Protocol.BAMID == "" {
			return fmt.Errorf("protocol.bamId is required for j1939")
		}
	default:
		return fmt.Errorf("invalid protocol.type: %q", jf.Protocol.Type)
	}
	if len(jf.Protocol.TargetIDs) == 0 {
		return fmt.Errorf("protocol.targetIds must not be empty")
	}
	return nil
}

// profile builds the protocol profile described by the job file.
func (jf *jobFile) profile() (tp.Profile, error) {
	switch jf.Protocol.Type {
	case "uds":
		return tp.UDS(), nil
	case "nmea":
		return tp.NMEA(), nil
	case "j1939":
		return tp.J1939(jf.Protocol.BAMID)
	}
	return tp.Profile{}, fmt.Errorf("invalid protocol.type: %q", jf.Protocol.Type)
}

// toJob translates the file into a pipeline job plus the storage config.
func (jf *jobFile) toJob(cfg *appConfig) (pipeline.Job, storage.Config, error) {
	profile, err := jf.profile()
	if err != nil {
		return pipeline.Job{}, storage.Config{}, err
	}
	targets, err := can.ParseIDList(jf.Protocol.TargetIDs)
	if err != nil {
		return pipeline.Job{}, storage.Config{}, err
	}
	job := pipeline.Job{
		InputPath:      jf.Input.Path,
		Format:         canlog.Format(jf.Input.Format),
		Profile:        profile,
		TargetIDs:      targets,
		StrictCounters: cfg.strict,
		Parallel:       cfg.parallel,
		SnapshotPath:   jf.Output.Snapshot,
	}
	sc := storage.Config{
		S3:       jf.Input.S3,
		Base:     jf.Input.Base,
		Endpoint: jf.Input.Endpoint,
		Key:      jf.Input.Key,
		Secret:   jf.Input.Secret,
		CACert:   jf.Input.CACert,
	}
	return job, sc, nil
}
