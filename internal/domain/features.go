package domain

import "sort"

type WorkspaceFeature string

const (
	FeatureInboxTasks WorkspaceFeature = "inbox-tasks"
	FeatureWorkingMem WorkspaceFeature = "working-mem"
	FeatureTimePlans  WorkspaceFeature = "time-plans"
	FeatureSchedule   WorkspaceFeature = "schedule"
	FeatureHabits     WorkspaceFeature = "habits"
	FeatureChores     WorkspaceFeature = "chores"
	FeatureBigPlans   WorkspaceFeature = "big-plans"
	FeatureJournals   WorkspaceFeature = "journals"
	FeatureVacations  WorkspaceFeature = "vacations"
	FeatureProjects   WorkspaceFeature = "projects"
	FeatureMetrics    WorkspaceFeature = "metrics"
	FeaturePersons    WorkspaceFeature = "persons"
	FeatureSlackTasks WorkspaceFeature = "slack-tasks"
	FeatureEmailTasks WorkspaceFeature = "email-tasks"
)

var AllWorkspaceFeatures = []WorkspaceFeature{
	FeatureInboxTasks, FeatureWorkingMem, FeatureTimePlans, FeatureSchedule, FeatureHabits, FeatureChores,
	FeatureBigPlans, FeatureJournals, FeatureVacations, FeatureProjects, FeatureMetrics, FeaturePersons,
	FeatureSlackTasks, FeatureEmailTasks,
}

type UserFeature string

const FeatureGamification UserFeature = "gamification"

var AllUserFeatures = []UserFeature{FeatureGamification}

// FeatureControl says who decides a feature's value.
type FeatureControl string

const (
	ControlAlwaysOn  FeatureControl = "always-on"
	ControlAlwaysOff FeatureControl = "always-off"
	ControlUser      FeatureControl = "user"
)

func (c FeatureControl) Validate() error {
	switch c {
	case ControlAlwaysOn, ControlAlwaysOff, ControlUser:
		return nil
	}
	return Invalid("control", "unknown feature control %q", string(c))
}

type WorkspaceFeatureFlags map[WorkspaceFeature]bool

type UserFeatureFlags map[UserFeature]bool

// FeatureFlagsControls is the environment-level policy that flag maps must conform to.
type FeatureFlagsControls struct {
	Workspace map[WorkspaceFeature]FeatureControl `json:"workspace" yaml:"workspace"`
	User      map[UserFeature]FeatureControl      `json:"user" yaml:"user"`
}

func (c FeatureFlagsControls) workspaceControl(f WorkspaceFeature) FeatureControl {
	if ctl, ok := c.Workspace[f]; ok {
		return ctl
	}
	return ControlUser
}

func (c FeatureFlagsControls) userControl(f UserFeature) FeatureControl {
	if ctl, ok := c.User[f]; ok {
		return ctl
	}
	return ControlUser
}

// StandardWorkspaceFlags turns every controllable feature on.
func (c FeatureFlagsControls) StandardWorkspaceFlags() WorkspaceFeatureFlags {
	flags := WorkspaceFeatureFlags{}
	for _, f := range AllWorkspaceFeatures {
		flags[f] = c.workspaceControl(f) != ControlAlwaysOff
	}
	return flags
}

func (c FeatureFlagsControls) StandardUserFlags() UserFeatureFlags {
	flags := UserFeatureFlags{}
	for _, f := range AllUserFeatures {
		flags[f] = c.userControl(f) != ControlAlwaysOff
	}
	return flags
}

// CheckWorkspaceFlags completes flags with defaults and rejects values that violate the controls.
func (c FeatureFlagsControls) CheckWorkspaceFlags(flags WorkspaceFeatureFlags) (WorkspaceFeatureFlags, error) {
	known := map[WorkspaceFeature]bool{}
	for _, f := range AllWorkspaceFeatures {
		known[f] = true
	}
	out := c.StandardWorkspaceFlags()
	for f, v := range flags {
		if !known[f] {
			return nil, Invalid("feature_flags", "unknown workspace feature %q", string(f))
		}
		switch c.workspaceControl(f) {
		case ControlAlwaysOn:
			if !v {
				return nil, Invalid("feature_flags", "feature %s cannot be turned off", f)
			}
		case ControlAlwaysOff:
			if v {
				return nil, Invalid("feature_flags", "feature %s cannot be turned on", f)
			}
		}
		out[f] = v
	}
	return out, nil
}

func (c FeatureFlagsControls) CheckUserFlags(flags UserFeatureFlags) (UserFeatureFlags, error) {
	out := c.StandardUserFlags()
	for f, v := range flags {
		if f != FeatureGamification {
			return nil, Invalid("feature_flags", "unknown user feature %q", string(f))
		}
		switch c.userControl(f) {
		case ControlAlwaysOn:
			if !v {
				return nil, Invalid("feature_flags", "feature %s cannot be turned off", f)
			}
		case ControlAlwaysOff:
			if v {
				return nil, Invalid("feature_flags", "feature %s cannot be turned on", f)
			}
		}
		out[f] = v
	}
	return out, nil
}

// Enabled lists the features turned on, sorted.
func (f WorkspaceFeatureFlags) Enabled() []WorkspaceFeature {
	var out []WorkspaceFeature
	for k, v := range f {
		if v {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
