package identity

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
	"gorm.io/gorm"
)

// Agent is the local cached representation of a remote identity principal.
// Email is the only join key shared with the remote store; the remote numeric
// id is never trusted before the first sync. Rows are created on first
// authenticated contact and overwritten whenever the live profile diverges
// from the cached snapshot.
type Agent struct {
	gorm.Model
	Email         string `json:"email" gorm:"index:idx_agent_email,unique"`
	Name          string `json:"name"`
	RemoteID      string `json:"remote_id"`
	SocialProfile string `json:"social_profile"`
	IsSuper       bool   `json:"is_super" gorm:"default:false"`
}

// GetAgentByEmail retrieves a cached agent row.
func GetAgentByEmail(email string, db *gorm.DB) (*Agent, error) {
	var agent Agent
	result := db.First(&agent, "email = ?", strings.ToLower(email))
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}
	if result.Error != nil {
		return nil, apperr.Wrap(result.Error, apperr.ErrDatabase, "")
	}
	return &agent, nil
}

// CreateAgentFromProfile seeds the cache from the live remote profile.
func CreateAgentFromProfile(profile *directory.Profile, db *gorm.DB) (*Agent, error) {
	snapshot, err := json.Marshal(profile)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInternal, "")
	}
	agent := Agent{
		Email:         strings.ToLower(profile.Email),
		Name:          profile.Name,
		RemoteID:      profile.UserID,
		SocialProfile: string(snapshot),
	}
	if err := db.Create(&agent).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	return &agent, nil
}

// RefreshFromProfile overwrites the cached snapshot with the live profile and
// fills any locally-empty fields from it.
func (a *Agent) RefreshFromProfile(profile *directory.Profile, db *gorm.DB) error {
	snapshot, err := json.Marshal(profile)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrInternal, "")
	}
	a.SocialProfile = string(snapshot)
	if a.Name == "" {
		a.Name = profile.Name
	}
	if a.RemoteID == "" {
		a.RemoteID = profile.UserID
	}
	if err := db.Save(a).Error; err != nil {
		return apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	return nil
}

// Snapshot decodes the cached remote-profile snapshot.
func (a *Agent) Snapshot() (*directory.Profile, error) {
	if a.SocialProfile == "" {
		return nil, nil
	}
	var profile directory.Profile
	if err := json.Unmarshal([]byte(a.SocialProfile), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ProfileComparer decides whether a cached snapshot still matches the live
// remote profile. Kept behind an interface so the structural diff can be
// swapped for a version or etag comparison if the remote API grows one.
type ProfileComparer interface {
	Equal(cached, live *directory.Profile) bool
}

// StructuralComparer compares profiles by their normalized JSON encoding.
type StructuralComparer struct{}

func (StructuralComparer) Equal(cached, live *directory.Profile) bool {
	if cached == nil || live == nil {
		return cached == live
	}
	a, err := json.Marshal(cached)
	if err != nil {
		return false
	}
	b, err := json.Marshal(live)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}
