package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/rosterd/console/apperr"
	"gorm.io/gorm"
)

// Update types; an update either describes a team or an organization change.
const (
	UpdateTypeTeam         = "team"
	UpdateTypeOrganization = "organization"
)

// Update is a durable instruction to fold a change into a recipient's remote
// metadata once that recipient becomes reachable. UUID is an external
// reference, not a row key; uniqueness is the (uuid, recipient) pair. A row is
// consumed at most once per reconciliation pass and deleted only after the
// merged metadata write is acknowledged.
type Update struct {
	gorm.Model
	UUID      string `json:"uuid" gorm:"index:idx_update_target,unique"`
	Recipient string `json:"recipient" gorm:"index:idx_update_target,unique"`
	Type      string `json:"type"`
	Data      string `json:"data"`
}

// PutUpdate records a pending change for a recipient. sqlite has no native
// upsert on a composite key, so this is an explicit find-else-insert; on
// conflict only updated_at advances, which forces redelivery on the next
// reconciliation pass instead of duplicating the row.
func PutUpdate(uuid, recipient, updateType, data string, db *gorm.DB) error {
	recipient = strings.ToLower(recipient)
	var existing Update
	result := db.First(&existing, "uuid = ? AND recipient = ?", uuid, recipient)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		row := Update{UUID: uuid, Recipient: recipient, Type: updateType, Data: data}
		if err := db.Create(&row).Error; err != nil {
			return apperr.Wrap(err, apperr.ErrDatabase, "")
		}
		return nil
	}
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.ErrDatabase, "")
	}
	existing.Data = data
	existing.UpdatedAt = time.Now()
	if err := db.Save(&existing).Error; err != nil {
		return apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	return nil
}

// UpdatesFor loads every pending update for a recipient ordered newest first.
// That ordering is the reconciler's processing order; callers must not
// re-sort.
func UpdatesFor(recipient string, db *gorm.DB) ([]Update, error) {
	var updates []Update
	result := db.Order("updated_at desc").Find(&updates, "recipient = ?", strings.ToLower(recipient))
	if result.Error != nil {
		return nil, apperr.Wrap(result.Error, apperr.ErrDatabase, "")
	}
	return updates, nil
}

// DeleteUpdates removes consumed rows after a successful metadata write.
func DeleteUpdates(recipient string, ids []uint, db *gorm.DB) error {
	if len(ids) == 0 {
		return nil
	}
	result := db.Unscoped().Where("recipient = ? AND id IN ?", strings.ToLower(recipient), ids).Delete(&Update{})
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.ErrDatabase, "")
	}
	return nil
}

// DeleteUpdateByUUID removes one pending update, used when an inviter
// withdraws an invitation before the recipient ever authenticates.
func DeleteUpdateByUUID(uuid, recipient string, db *gorm.DB) error {
	result := db.Unscoped().Where("uuid = ? AND recipient = ?", uuid, strings.ToLower(recipient)).Delete(&Update{})
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.ErrDatabase, "")
	}
	return nil
}
