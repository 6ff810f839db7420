// Package repository holds the admission lockers that serialize writers per
// (court, date) key.
package repository

import (
	"fmt"
	"time"

	"courtbook/internal/models"
)

// LockKey names the serialization scope of one court on one date.
func LockKey(courtID int64, date time.Time) string {
	return fmt.Sprintf("court:%d:%s", courtID, models.FormatDate(date))
}
