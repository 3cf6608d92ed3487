package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nfcsacco/saccoledger/pkg/models"
	"github.com/nfcsacco/saccoledger/pkg/store"
)

// Member IDs are sequential with a fixed prefix: NFC001, NFC002, ...
const memberIDPrefix = "NFC"

// Members manages the member register.
type Members struct {
	storage  store.Storage
	validate *validator.Validate
}

func NewMembers(s store.Storage) *Members {
	return &Members{
		storage:  s,
		validate: validator.New(),
	}
}

// NewMemberInput is a member application from the presentation layer.
// MemberID is optional; a sequential one is generated when absent.
type NewMemberInput struct {
	MemberID   string `json:"member_id" validate:"omitempty,min=3"`
	FirstName  string `json:"first_name" validate:"required"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name" validate:"required"`
	Gender     string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	StationID  string `json:"station_id"`
	Phone      string `json:"phone"`
	Email      string `json:"email" validate:"omitempty,email"`
}

// Add registers a new member, generating an ID when none was supplied.
func (r *Members) Add(input NewMemberInput) (*models.Member, error) {
	if err := r.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid member: %w", err)
	}

	id := input.MemberID
	if id == "" {
		generated, err := r.nextMemberID()
		if err != nil {
			return nil, err
		}
		id = generated
	}

	member := &models.Member{
		ID:         id,
		FirstName:  input.FirstName,
		MiddleName: input.MiddleName,
		LastName:   input.LastName,
		Gender:     input.Gender,
		DateJoined: time.Now(),
		StationID:  input.StationID,
		Phone:      input.Phone,
		Email:      input.Email,
	}
	if err := r.storage.CreateMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return member, nil
}

// nextMemberID scans existing IDs for the highest numeric suffix and returns
// the next one. IDs that don't follow the prefix convention are skipped.
func (r *Members) nextMemberID() (string, error) {
	members, err := r.storage.ListMembers()
	if err != nil {
		return "", fmt.Errorf("failed to list members: %w", err)
	}
	maxID := 0
	for _, m := range members {
		n, err := strconv.Atoi(strings.TrimPrefix(m.ID, memberIDPrefix))
		if err != nil {
			continue
		}
		if n > maxID {
			maxID = n
		}
	}
	return fmt.Sprintf("%s%03d", memberIDPrefix, maxID+1), nil
}

func (r *Members) Get(id string) (*models.Member, error) {
	return r.storage.GetMember(id)
}

// Update edits an existing member; the ID itself is immutable.
func (r *Members) Update(member *models.Member) error {
	if member.ID == "" {
		return fmt.Errorf("invalid member: missing id")
	}
	return r.storage.UpdateMember(member)
}

func (r *Members) Delete(id string) error {
	return r.storage.DeleteMember(id)
}

func (r *Members) List() ([]*models.Member, error) {
	return r.storage.ListMembers()
}
