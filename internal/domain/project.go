package domain

type Project struct {
	EntityBase
	ProjectCollectionRefID EntityID `json:"project_collection_ref_id"`
	ParentProjectRefID     EntityID `json:"parent_project_ref_id,omitempty"`
	Name                   string   `json:"name"`
}

func (*Project) Kind() Kind              { return KindProject }
func (p *Project) ParentRefID() EntityID { return p.ProjectCollectionRefID }
func (p *Project) DisplayName() string   { return p.Name }

func (p *Project) Links() Links {
	return Links{"parent_project_ref_id": optionalRef(p.ParentProjectRefID)}
}

func NewProject(ctx Ctx, collection, parent EntityID, name string) (*Project, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	return &Project{EntityBase: newBase(ctx), ProjectCollectionRefID: collection, ParentProjectRefID: parent, Name: name}, nil
}

// IsRoot reports whether p is the workspace's top project.
func (p *Project) IsRoot() bool { return p.ParentProjectRefID == BadRefID }

func (p *Project) Update(ctx Ctx, name string) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	p.Name = name
	p.record(ctx, "Updated", nil)
	return nil
}

func (p *Project) ChangeParent(ctx Ctx, parent EntityID) error {
	if p.IsRoot() {
		return Invalid("parent_project_ref_id", "the root project cannot be moved")
	}
	if parent == BadRefID || parent == p.RefID {
		return Invalid("parent_project_ref_id", "invalid parent project")
	}
	p.ParentProjectRefID = parent
	p.record(ctx, "ChangeParent", map[string]any{"parent_project_ref_id": parent})
	return nil
}

func (p *Project) CheckArchivable(ADate) error {
	if p.IsRoot() {
		return Invalid("archived", "the root project cannot be archived")
	}
	return nil
}
