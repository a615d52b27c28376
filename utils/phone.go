package utils

import (
	"fmt"
	"os"

	"github.com/ttacon/libphonenumber"
)

func defaultPhoneRegion() string {
	region := os.Getenv("DEFAULT_PHONE_REGION")
	if region == "" {
		return "LB"
	}
	return region
}

// NormalizePhoneE164 parses a raw phone string and returns it in E.164 form.
// Numbers without a country prefix are parsed against DEFAULT_PHONE_REGION.
func NormalizePhoneE164(phone string) (string, error) {
	p, err := libphonenumber.Parse(phone, defaultPhoneRegion())
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}
