package domain

import (
	"net/mail"
	"time"
)

type User struct {
	EntityBase
	Name         string           `json:"name"`
	EmailAddress string           `json:"email_address"`
	Timezone     string           `json:"timezone"`
	FeatureFlags UserFeatureFlags `json:"feature_flags"`
}

func (*User) Kind() Kind            { return KindUser }
func (*User) ParentRefID() EntityID { return BadRefID }
func (u *User) Links() Links        { return Links{"email_address": u.EmailAddress} }
func (u *User) DisplayName() string { return u.Name }

func NewUser(ctx Ctx, name, email, timezone string, flags UserFeatureFlags) (*User, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, Invalid("email_address", "invalid email %q", email)
	}
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, Invalid("timezone", "unknown timezone %q", timezone)
	}
	return &User{EntityBase: newBase(ctx), Name: name, EmailAddress: email, Timezone: timezone, FeatureFlags: flags}, nil
}

func (u *User) IsFeatureAvailable(f UserFeature) bool { return u.FeatureFlags[f] }

func (u *User) Update(ctx Ctx, name, timezone *string) error {
	if name != nil {
		if err := validateName("name", *name); err != nil {
			return err
		}
		u.Name = *name
	}
	if timezone != nil {
		if _, err := time.LoadLocation(*timezone); err != nil {
			return Invalid("timezone", "unknown timezone %q", *timezone)
		}
		u.Timezone = *timezone
	}
	u.record(ctx, "Updated", nil)
	return nil
}

func (u *User) ChangeFeatureFlags(ctx Ctx, controls FeatureFlagsControls, flags UserFeatureFlags) error {
	checked, err := controls.CheckUserFlags(flags)
	if err != nil {
		return err
	}
	u.FeatureFlags = checked
	u.record(ctx, "ChangeFeatureFlags", map[string]any{"flags": checked})
	return nil
}

type Workspace struct {
	EntityBase
	Name                string                `json:"name"`
	OwnerRefID          EntityID              `json:"owner_ref_id"`
	DefaultProjectRefID EntityID              `json:"default_project_ref_id"`
	FeatureFlags        WorkspaceFeatureFlags `json:"feature_flags"`
}

func (*Workspace) Kind() Kind            { return KindWorkspace }
func (*Workspace) ParentRefID() EntityID { return BadRefID }
func (w *Workspace) Links() Links        { return Links{"owner_ref_id": optionalRef(w.OwnerRefID)} }
func (w *Workspace) DisplayName() string { return w.Name }

func NewWorkspace(ctx Ctx, name string, owner EntityID, controls FeatureFlagsControls, flags WorkspaceFeatureFlags) (*Workspace, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	checked, err := controls.CheckWorkspaceFlags(flags)
	if err != nil {
		return nil, err
	}
	return &Workspace{EntityBase: newBase(ctx), Name: name, OwnerRefID: owner, FeatureFlags: checked}, nil
}

func (w *Workspace) IsFeatureAvailable(f WorkspaceFeature) bool { return w.FeatureFlags[f] }

// CheckFeature fails with FeatureUnavailableError when f is off.
func (w *Workspace) CheckFeature(f WorkspaceFeature) error {
	if f == "" || w.IsFeatureAvailable(f) {
		return nil
	}
	return &FeatureUnavailableError{Feature: string(f)}
}

func (w *Workspace) Update(ctx Ctx, name string) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	w.Name = name
	w.record(ctx, "Updated", nil)
	return nil
}

func (w *Workspace) ChangeDefaultProject(ctx Ctx, projectRefID EntityID) {
	w.DefaultProjectRefID = projectRefID
	w.record(ctx, "ChangeDefaultProject", map[string]any{"project_ref_id": projectRefID})
}

func (w *Workspace) ChangeFeatureFlags(ctx Ctx, controls FeatureFlagsControls, flags WorkspaceFeatureFlags) error {
	checked, err := controls.CheckWorkspaceFlags(flags)
	if err != nil {
		return err
	}
	w.FeatureFlags = checked
	w.record(ctx, "ChangeFeatureFlags", map[string]any{"flags": checked})
	return nil
}
