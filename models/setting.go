package models

import "gorm.io/gorm"

// Setting is a single business-identity variable used in templates
// (businessName, businessPhone, ownerName, bookingLink, ...)
type Setting struct {
	gorm.Model

	Key   string `gorm:"not null;uniqueIndex" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}
