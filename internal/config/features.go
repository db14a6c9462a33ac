package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"jupiter/internal/domain"
)

// Feature controls per environment. Features missing from a map are user-controlled.
const featureControlsTemplate = `local:
  workspace: {}
  user: {}
staging:
  workspace:
    inbox-tasks: always-on
  user: {}
production:
  workspace:
    inbox-tasks: always-on
    slack-tasks: always-off
    email-tasks: always-off
  user: {}
`

var featureControls = mustParseControls(featureControlsTemplate)

func mustParseControls(raw string) map[string]domain.FeatureFlagsControls {
	out := map[string]domain.FeatureFlagsControls{}
	if err := yaml.Unmarshal([]byte(raw), &out); err != nil {
		panic(fmt.Sprintf("config: feature controls: %v", err))
	}
	for envName, c := range out {
		for f, ctl := range c.Workspace {
			if err := ctl.Validate(); err != nil {
				panic(fmt.Sprintf("config: %s workspace feature %s: %v", envName, f, err))
			}
		}
		for f, ctl := range c.User {
			if err := ctl.Validate(); err != nil {
				panic(fmt.Sprintf("config: %s user feature %s: %v", envName, f, err))
			}
		}
	}
	return out
}

// FeatureControls returns the feature flag policy of environment envName.
func FeatureControls(envName string) domain.FeatureFlagsControls {
	if c, ok := featureControls[envName]; ok {
		return c
	}
	return featureControls[EnvLocal]
}

// FeatureControls returns the policy of the running environment.
func (s *Settings) FeatureControls() domain.FeatureFlagsControls {
	return FeatureControls(s.Env)
}
