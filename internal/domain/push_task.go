package domain

import "fmt"

// PushGenerationExtraInfo holds overrides a push integration can send along with a message.
type PushGenerationExtraInfo struct {
	Name           string          `json:"name,omitempty"`
	Status         InboxTaskStatus `json:"status,omitempty"`
	Eisen          Eisen           `json:"eisen,omitempty"`
	Difficulty     Difficulty      `json:"difficulty,omitempty"`
	ActionableDate ADate           `json:"actionable_date"`
	DueDate        ADate           `json:"due_date"`
}

func (x PushGenerationExtraInfo) Validate() error {
	if x.Status != "" {
		if err := x.Status.Validate(); err != nil {
			return err
		}
	}
	if x.Eisen != "" {
		if err := x.Eisen.Validate(); err != nil {
			return err
		}
	}
	if x.Difficulty != "" {
		if err := x.Difficulty.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EisenOr returns the override or def.
func (x PushGenerationExtraInfo) EisenOr(def Eisen) Eisen {
	if x.Eisen == "" {
		return def
	}
	return x.Eisen
}

func (x PushGenerationExtraInfo) DifficultyOr(def Difficulty) Difficulty {
	if x.Difficulty == "" {
		return def
	}
	return x.Difficulty
}

type SlackTask struct {
	EntityBase
	SlackTaskCollectionRefID EntityID                `json:"slack_task_collection_ref_id"`
	User                     string                  `json:"user"`
	Channel                  string                  `json:"channel,omitempty"`
	Message                  string                  `json:"message"`
	GenerationExtraInfo      PushGenerationExtraInfo `json:"generation_extra_info"`
}

func (*SlackTask) Kind() Kind              { return KindSlackTask }
func (t *SlackTask) ParentRefID() EntityID { return t.SlackTaskCollectionRefID }
func (t *SlackTask) Links() Links          { return nil }
func (t *SlackTask) DisplayName() string   { return t.TaskName() }

func NewSlackTask(ctx Ctx, collection EntityID, user, channel, message string, extra PushGenerationExtraInfo) (*SlackTask, error) {
	if err := validateName("user", user); err != nil {
		return nil, err
	}
	if message == "" {
		return nil, Invalid("message", "must not be empty")
	}
	if err := extra.Validate(); err != nil {
		return nil, err
	}
	return &SlackTask{
		EntityBase:               newBase(ctx),
		SlackTaskCollectionRefID: collection,
		User:                     user,
		Channel:                  channel,
		Message:                  message,
		GenerationExtraInfo:      extra,
	}, nil
}

func (t *SlackTask) Update(ctx Ctx, user, channel, message string, extra PushGenerationExtraInfo) error {
	if err := validateName("user", user); err != nil {
		return err
	}
	if message == "" {
		return Invalid("message", "must not be empty")
	}
	if err := extra.Validate(); err != nil {
		return err
	}
	t.User, t.Channel, t.Message, t.GenerationExtraInfo = user, channel, message, extra
	t.record(ctx, "Updated", nil)
	return nil
}

// TaskName is the name of the generated inbox task.
func (t *SlackTask) TaskName() string {
	if t.GenerationExtraInfo.Name != "" {
		return t.GenerationExtraInfo.Name
	}
	if t.Channel != "" {
		return fmt.Sprintf("Respond to %s on channel %s", t.User, t.Channel)
	}
	return fmt.Sprintf("Respond to %s", t.User)
}

type EmailTask struct {
	EntityBase
	EmailTaskCollectionRefID EntityID                `json:"email_task_collection_ref_id"`
	FromAddress              string                  `json:"from_address"`
	FromName                 string                  `json:"from_name"`
	ToAddress                string                  `json:"to_address"`
	Subject                  string                  `json:"subject"`
	Body                     string                  `json:"body"`
	GenerationExtraInfo      PushGenerationExtraInfo `json:"generation_extra_info"`
}

func (*EmailTask) Kind() Kind              { return KindEmailTask }
func (t *EmailTask) ParentRefID() EntityID { return t.EmailTaskCollectionRefID }
func (t *EmailTask) Links() Links          { return nil }
func (t *EmailTask) DisplayName() string   { return t.TaskName() }

// EmailMessage is the envelope of an ingested email.
type EmailMessage struct {
	FromAddress string
	FromName    string
	ToAddress   string
	Subject     string
	Body        string
}

func (m EmailMessage) validate() error {
	if m.FromAddress == "" {
		return Invalid("from_address", "must not be empty")
	}
	if m.ToAddress == "" {
		return Invalid("to_address", "must not be empty")
	}
	return nil
}

func NewEmailTask(ctx Ctx, collection EntityID, msg EmailMessage, extra PushGenerationExtraInfo) (*EmailTask, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	if err := extra.Validate(); err != nil {
		return nil, err
	}
	return &EmailTask{
		EntityBase:               newBase(ctx),
		EmailTaskCollectionRefID: collection,
		FromAddress:              msg.FromAddress,
		FromName:                 msg.FromName,
		ToAddress:                msg.ToAddress,
		Subject:                  msg.Subject,
		Body:                     msg.Body,
		GenerationExtraInfo:      extra,
	}, nil
}

func (t *EmailTask) Update(ctx Ctx, msg EmailMessage, extra PushGenerationExtraInfo) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if err := extra.Validate(); err != nil {
		return err
	}
	t.FromAddress, t.FromName, t.ToAddress, t.Subject, t.Body = msg.FromAddress, msg.FromName, msg.ToAddress, msg.Subject, msg.Body
	t.GenerationExtraInfo = extra
	t.record(ctx, "Updated", nil)
	return nil
}

func (t *EmailTask) TaskName() string {
	if t.GenerationExtraInfo.Name != "" {
		return t.GenerationExtraInfo.Name
	}
	from := t.FromName
	if from == "" {
		from = t.FromAddress
	}
	if t.Subject == "" {
		return fmt.Sprintf("Respond to email from %s", from)
	}
	return TruncateName(fmt.Sprintf("Respond to email from %s: %s", from, t.Subject))
}
