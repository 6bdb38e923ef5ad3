package db

import (
	"membership-portal/payment/audit"
	"membership-portal/payment/record"
)

func Sync() {
	err := DB.AutoMigrate(&User{}, &record.Payment{}, &audit.Entry{})
	if err != nil {
		panic(err)
	}
}
