package main

import (
	"fmt"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/config"
	"github.com/kbukum/glowbook/observability"
	"github.com/kbukum/glowbook/server"
)

// AppConfig is the glowbook process configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Cloud                cloud.Config         `yaml:"cloud" mapstructure:"cloud"`
	Server               server.Config        `yaml:"server" mapstructure:"server"`
	Observability        observability.Config `yaml:"observability" mapstructure:"observability"`
}

func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Cloud.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if len(c.Cloud.Candidates()) == 0 {
		return fmt.Errorf("cloud.providers: no candidate in %v has its required credentials", c.Cloud.Priority)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// candidate resolves a configured candidate label for the migrate command.
func (c *AppConfig) candidate(label string) (cloud.Candidate, error) {
	all := cloud.Config{Priority: []string{label}, Providers: c.Cloud.Providers}
	found := all.Candidates()
	if len(found) == 0 {
		return cloud.Candidate{}, fmt.Errorf("cloud.providers.%s is missing or lacks its required credentials", label)
	}
	return found[0], nil
}
