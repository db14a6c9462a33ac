package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type PersonRelationship string

const (
	RelationshipFamily       PersonRelationship = "family"
	RelationshipFriend       PersonRelationship = "friend"
	RelationshipAcquaintance PersonRelationship = "acquaintance"
	RelationshipSchoolBuddy  PersonRelationship = "school-buddy"
	RelationshipWorkBuddy    PersonRelationship = "work-buddy"
	RelationshipColleague    PersonRelationship = "colleague"
	RelationshipOther        PersonRelationship = "other"
)

const (
	defaultBirthdayPrepDays   = 14
	maxBirthdayPreparationDay = 60
)

func (r PersonRelationship) Validate() error {
	switch r {
	case RelationshipFamily, RelationshipFriend, RelationshipAcquaintance, RelationshipSchoolBuddy,
		RelationshipWorkBuddy, RelationshipColleague, RelationshipOther:
		return nil
	}
	return Invalid("relationship", "unknown relationship %q", string(r))
}

// PersonBirthday is a day and month without a year. It serializes as "MM-DD".
type PersonBirthday struct {
	Month time.Month
	Day   int
}

func NewPersonBirthday(month time.Month, day int) (PersonBirthday, error) {
	if month < time.January || month > time.December {
		return PersonBirthday{}, Invalid("birthday", "month %d is out of range", month)
	}
	// 2024 is a leap year so Feb 29 is accepted.
	if day < 1 || day > time.Date(2024, month+1, 0, 0, 0, 0, 0, time.UTC).Day() {
		return PersonBirthday{}, Invalid("birthday", "day %d is out of range for %s", day, month)
	}
	return PersonBirthday{Month: month, Day: day}, nil
}

func ParsePersonBirthday(s string) (PersonBirthday, error) {
	var m, d int
	if _, err := fmt.Sscanf(s, "%d-%d", &m, &d); err != nil {
		return PersonBirthday{}, Invalid("birthday", "expected MM-DD, got %q", s)
	}
	return NewPersonBirthday(time.Month(m), d)
}

func (b PersonBirthday) String() string { return fmt.Sprintf("%02d-%02d", int(b.Month), b.Day) }

func (b PersonBirthday) MarshalJSON() ([]byte, error) { return json.Marshal(b.String()) }

func (b *PersonBirthday) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePersonBirthday(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

type Person struct {
	EntityBase
	PersonCollectionRefID         EntityID                `json:"person_collection_ref_id"`
	Name                          string                  `json:"name"`
	Relationship                  PersonRelationship      `json:"relationship"`
	CatchUpParams                 *RecurringTaskGenParams `json:"catch_up_params,omitempty"`
	Birthday                      *PersonBirthday         `json:"birthday,omitempty"`
	PreparationDaysCntForBirthday int                     `json:"preparation_days_cnt_for_birthday"`
}

func (*Person) Kind() Kind              { return KindPerson }
func (p *Person) ParentRefID() EntityID { return p.PersonCollectionRefID }
func (p *Person) Links() Links          { return nil }
func (p *Person) DisplayName() string   { return p.Name }

func validatePerson(relationship PersonRelationship, params *RecurringTaskGenParams, prepDays int) error {
	if err := relationship.Validate(); err != nil {
		return err
	}
	if params != nil {
		if err := params.Validate(); err != nil {
			return err
		}
	}
	if prepDays < 0 || prepDays > maxBirthdayPreparationDay {
		return Invalid("preparation_days_cnt_for_birthday", "%d is out of range", prepDays)
	}
	return nil
}

func NewPerson(ctx Ctx, collection EntityID, name string, relationship PersonRelationship,
	params *RecurringTaskGenParams, birthday *PersonBirthday, prepDays *int) (*Person, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	days := defaultBirthdayPrepDays
	if prepDays != nil {
		days = *prepDays
	}
	if relationship == "" {
		relationship = RelationshipFriend
	}
	if err := validatePerson(relationship, params, days); err != nil {
		return nil, err
	}
	return &Person{
		EntityBase:                    newBase(ctx),
		PersonCollectionRefID:         collection,
		Name:                          name,
		Relationship:                  relationship,
		CatchUpParams:                 params,
		Birthday:                      birthday,
		PreparationDaysCntForBirthday: days,
	}, nil
}

func (p *Person) Update(ctx Ctx, name string, relationship PersonRelationship, params *RecurringTaskGenParams,
	birthday *PersonBirthday, prepDays int) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	if err := validatePerson(relationship, params, prepDays); err != nil {
		return err
	}
	p.Name, p.Relationship, p.CatchUpParams, p.Birthday = name, relationship, params, birthday
	p.PreparationDaysCntForBirthday = prepDays
	p.record(ctx, "Updated", nil)
	return nil
}
