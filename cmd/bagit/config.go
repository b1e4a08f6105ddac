package main

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ndlib/bagger/bagit"
)

// config holds the settings which may come from a config file. Flags given
// on the command line override them.
type config struct {
	Algorithms     []string        `toml:"algorithms"`
	Processes      int             `toml:"processes"`
	LogLevel       string          `toml:"log_level"`
	SentryDSN      string          `toml:"sentry_dsn"`
	BytesPerSecond float64         `toml:"bytes_per_second"`
	Stats          bool            `toml:"stats"`
	Metadata       []metadataField `toml:"metadata"`
}

// A metadataField is one [[metadata]] table, which becomes one bag-info.txt
// line. Tables keep the order they appear in the file.
type metadataField struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

func defaultConfig() config {
	return config{
		Algorithms: bagit.DefaultAlgorithms,
		Processes:  1,
		LogLevel:   "info",
	}
}

// loadConfig reads the TOML file at path on top of the defaults. Unknown keys
// are an error, so a misspelled setting is not silently ignored.
func loadConfig(path string) (config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, errors.Wrap(err, "reading config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		var keys []string
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return c, errors.Errorf("%s: unknown settings %s", path, strings.Join(keys, ", "))
	}
	return c, c.check()
}

func (c config) check() error {
	for i, m := range c.Metadata {
		if m.Name == "" || strings.ContainsAny(m.Name, ":\r\n") {
			return errors.Errorf("metadata entry %d has invalid name %q", i+1, m.Name)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// info returns the metadata as a bag-info.txt tag set.
func (c config) info() *bagit.Info {
	info := bagit.NewInfo()
	for _, m := range c.Metadata {
		info.Add(m.Name, m.Value)
	}
	return info
}

// parseTag splits a "Name: value" flag argument.
func parseTag(s string) (metadataField, error) {
	i := strings.Index(s, ":")
	if i <= 0 {
		return metadataField{}, errors.Errorf("tag %q is not of the form Name: value", s)
	}
	return metadataField{
		Name:  strings.TrimSpace(s[:i]),
		Value: strings.TrimSpace(s[i+1:]),
	}, nil
}
