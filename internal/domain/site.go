package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ID is a record identifier as the backend returns it: a bigint for the
// editorial tables, a uuid for tables that use one. It round-trips as a JSON
// number when numeric so that writes land in bigint columns unchanged.
type ID string

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*id = ID(n.String())
	}
	return nil
}

// SettingsID is the primary key of the only site_settings row.
const SettingsID = 1

// DefaultWhatsAppNumber is used for guest deep links until staff configure one.
const DefaultWhatsAppNumber = "918852021119"

type SiteSettings struct {
	ID               int64      `json:"id"`
	BrandName        string     `json:"brand_name"`
	Tagline          string     `json:"tagline"`
	LogoURL          string     `json:"logo_url"`
	HeroTitle        string     `json:"hero_title"`
	HeroSubtitle     string     `json:"hero_subtitle"`
	HeroImageURL     string     `json:"hero_image_url"`
	Section2Badge    string     `json:"section2_badge"`
	Section2Title    string     `json:"section2_title"`
	Section2Subtitle string     `json:"section2_subtitle"`
	Section2ImageURL string     `json:"section2_image_url"`
	WhatsAppNumber   string     `json:"whatsapp_number"`
	PhoneNumber      string     `json:"phone_number"`
	EmailAddress     string     `json:"email_address"`
	AddressText      string     `json:"address_text"`
	AirbnbURL        string     `json:"airbnb_url"`
	BookingURL       string     `json:"booking_url"`
	MetaDescription  string     `json:"meta_description"`
	MetaKeywords     string     `json:"meta_keywords"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// WhatsApp returns the configured number or the fallback, digits only.
func (s SiteSettings) WhatsApp() string {
	n := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s.WhatsAppNumber)
	if n == "" {
		return DefaultWhatsAppNumber
	}
	return n
}

// AssetField names a settings column that holds an uploaded branding image.
type AssetField string

const (
	AssetLogo          AssetField = "logo_url"
	AssetHeroImage     AssetField = "hero_image_url"
	AssetSection2Image AssetField = "section2_image_url"
)

func ParseAssetField(s string) (AssetField, bool) {
	switch f := AssetField(s); f {
	case AssetLogo, AssetHeroImage, AssetSection2Image:
		return f, true
	}
	return "", false
}

// Set stores url into the settings field named by f.
func (s *SiteSettings) Set(f AssetField, url string) {
	switch f {
	case AssetLogo:
		s.LogoURL = url
	case AssetHeroImage:
		s.HeroImageURL = url
	case AssetSection2Image:
		s.Section2ImageURL = url
	}
}

type AdminUser struct {
	Email string `json:"email"`
}

// User is the identity behind an access token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}
