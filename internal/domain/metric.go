package domain

type Metric struct {
	EntityBase
	MetricCollectionRefID EntityID                `json:"metric_collection_ref_id"`
	Name                  string                  `json:"name"`
	Icon                  string                  `json:"icon,omitempty"`
	CollectionParams      *RecurringTaskGenParams `json:"collection_params,omitempty"`
}

func (*Metric) Kind() Kind              { return KindMetric }
func (m *Metric) ParentRefID() EntityID { return m.MetricCollectionRefID }
func (m *Metric) Links() Links          { return nil }
func (m *Metric) DisplayName() string   { return m.Name }

func NewMetric(ctx Ctx, collection EntityID, name, icon string, params *RecurringTaskGenParams) (*Metric, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	if params != nil {
		if err := params.Validate(); err != nil {
			return nil, err
		}
	}
	return &Metric{EntityBase: newBase(ctx), MetricCollectionRefID: collection, Name: name, Icon: icon, CollectionParams: params}, nil
}

func (m *Metric) Update(ctx Ctx, name, icon string, params *RecurringTaskGenParams) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	if params != nil {
		if err := params.Validate(); err != nil {
			return err
		}
	}
	m.Name, m.Icon, m.CollectionParams = name, icon, params
	m.record(ctx, "Updated", nil)
	return nil
}

// MetricEntry is one collected value of a metric.
type MetricEntry struct {
	EntityBase
	MetricRefID    EntityID `json:"metric_ref_id"`
	CollectionTime ADate    `json:"collection_time"`
	Value          float64  `json:"value"`
	Notes          string   `json:"notes,omitempty"`
}

func (*MetricEntry) Kind() Kind              { return KindMetricEntry }
func (e *MetricEntry) ParentRefID() EntityID { return e.MetricRefID }
func (e *MetricEntry) Links() Links          { return nil }

func NewMetricEntry(ctx Ctx, metric EntityID, collectionTime ADate, value float64, notes string) (*MetricEntry, error) {
	if collectionTime.IsZero() {
		collectionTime = NewInstant(ctx.Timestamp)
	}
	return &MetricEntry{EntityBase: newBase(ctx), MetricRefID: metric, CollectionTime: collectionTime, Value: value, Notes: notes}, nil
}

func (e *MetricEntry) Update(ctx Ctx, collectionTime ADate, value float64, notes string) {
	if !collectionTime.IsZero() {
		e.CollectionTime = collectionTime
	}
	e.Value, e.Notes = value, notes
	e.record(ctx, "Updated", nil)
}
