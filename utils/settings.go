package utils

import (
	"leadflow/models"

	"gorm.io/gorm"
)

// BusinessSettings holds the business-identity variables available to
// templates. It is built once per processing run and passed through the
// call chain so rendering never reads global state.
type BusinessSettings struct {
	BusinessName    string
	BusinessPhone   string
	OwnerName       string
	BookingLink     string
	WebsiteURL      string
	GoogleReviewURL string
}

// LoadBusinessSettings reads all settings rows into a BusinessSettings
// struct, applying defaults for anything missing.
func LoadBusinessSettings(db *gorm.DB) (BusinessSettings, error) {
	var rows []models.Setting
	if err := db.Find(&rows).Error; err != nil {
		return BusinessSettings{}, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	settings := BusinessSettings{
		BusinessName:    values["businessName"],
		BusinessPhone:   values["businessPhone"],
		OwnerName:       values["ownerName"],
		BookingLink:     values["bookingLink"],
		WebsiteURL:      values["websiteUrl"],
		GoogleReviewURL: values["googleReviewUrl"],
	}
	if settings.BusinessName == "" {
		settings.BusinessName = "Hickory Dickory Decks Cincinnati"
	}
	if settings.OwnerName == "" {
		settings.OwnerName = "Nathan"
	}
	return settings, nil
}
