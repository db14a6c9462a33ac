package server

import (
	"jupiter/internal/domain"
)

type apiErrorBody struct {
	Code    string         `json:"code" example:"feature_unavailable"`
	Message string         `json:"message" example:"feature habits is not available in this workspace"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"feature\":\"habits\"}"`
}

// input carries the JSON arguments of a use case. An empty body means zero arguments.
type input[A any] struct {
	Body A `required:"false"`
}

type output[R any] struct {
	Body R
}

// RunNotification is what webhook receivers get when a run closes.
type RunNotification struct {
	Event          string          `json:"event"`
	DeliveryID     string          `json:"delivery_id"`
	WorkspaceRefID domain.EntityID `json:"workspace_ref_id"`
	Entry          domain.Entity   `json:"entry"`
}
