package form

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// fallbackPhonePlaceholder は地域コードから例示番号を得られない場合のプレースホルダー。
const fallbackPhonePlaceholder = "+373..."

// PhonePlaceholder は地域コード（ISO 3166-1 alpha-2）の例示番号を国際形式で返す。
func PhonePlaceholder(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return fallbackPhonePlaceholder
	}
	num := phonenumbers.GetExampleNumber(region)
	if num == nil {
		return fallbackPhonePlaceholder
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
}
