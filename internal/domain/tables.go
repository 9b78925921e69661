package domain

import "fmt"

type Table string

const (
	TableSiteSettings   Table = "site_settings"
	TableStayEnquiries  Table = "stay_enquiries"
	TableEventEnquiries Table = "event_enquiries"
	TableTestimonials   Table = "testimonials"
	TableFAQs           Table = "faqs"
	TableAmenityGroups  Table = "amenity_groups"
	TableEventSpaces    Table = "event_spaces"
	TableHouseRules     Table = "house_rules"
	TableGalleryImages  Table = "gallery_images"
	TableAdminUsers     Table = "admin_users"
)

type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInt
	KindSerial // auto-assigned integer key
	KindDate   // YYYY-MM-DD
	KindTime   // timestamp, RFC 3339 on the wire
	KindList   // []string, JSON text where the store has no array type
)

type Column struct {
	Name     string
	Kind     ColumnKind
	Required bool
	// Auto columns are filled by the store when absent on insert.
	Auto bool
}

type TableSpec struct {
	Name    Table
	Key     string
	Columns []Column
	// Order is the default listing order.
	Order []Order
}

func (t TableSpec) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

func text(name string) Column     { return Column{Name: name, Kind: KindText} }
func required(name string) Column { return Column{Name: name, Kind: KindText, Required: true} }

var (
	serialID  = Column{Name: "id", Kind: KindSerial, Auto: true}
	createdAt = Column{Name: "created_at", Kind: KindTime, Auto: true}
	byIDDesc  = []Order{{Column: "id", Desc: true}}
)

var tables = map[Table]TableSpec{
	TableSiteSettings: {
		Name: TableSiteSettings, Key: "id",
		Columns: []Column{
			{Name: "id", Kind: KindInt},
			text("brand_name"), text("tagline"), text("logo_url"),
			text("hero_title"), text("hero_subtitle"), text("hero_image_url"),
			text("section2_badge"), text("section2_title"), text("section2_subtitle"), text("section2_image_url"),
			text("whatsapp_number"), text("phone_number"), text("email_address"), text("address_text"),
			text("airbnb_url"), text("booking_url"),
			text("meta_description"), text("meta_keywords"),
			{Name: "updated_at", Kind: KindTime},
		},
		Order: []Order{{Column: "updated_at", Desc: true}},
	},
	TableStayEnquiries: {
		Name: TableStayEnquiries, Key: "id",
		Columns: []Column{
			serialID, createdAt,
			required("name"), required("phone"),
			{Name: "checkin", Kind: KindDate, Required: true},
			{Name: "checkout", Kind: KindDate, Required: true},
			{Name: "guests", Kind: KindInt, Required: true},
			text("message"), text("source"), text("status"),
		},
		Order: []Order{{Column: "created_at", Desc: true}},
	},
	TableEventEnquiries: {
		Name: TableEventEnquiries, Key: "id",
		Columns: []Column{
			serialID, createdAt,
			required("name"), required("phone"),
			{Name: "event_date", Kind: KindDate, Required: true},
			text("event_type"),
			{Name: "guests", Kind: KindInt, Required: true},
			text("requirements"), text("source"), text("status"),
		},
		Order: []Order{{Column: "created_at", Desc: true}},
	},
	TableTestimonials: {
		Name: TableTestimonials, Key: "id",
		Columns: []Column{serialID, required("name"), text("context"), required("text")},
		Order:   byIDDesc,
	},
	TableFAQs: {
		Name: TableFAQs, Key: "id",
		Columns: []Column{serialID, required("question"), required("answer")},
		Order:   byIDDesc,
	},
	TableAmenityGroups: {
		Name: TableAmenityGroups, Key: "id",
		Columns: []Column{serialID, required("title"), {Name: "items", Kind: KindList}},
		Order:   byIDDesc,
	},
	TableEventSpaces: {
		Name: TableEventSpaces, Key: "id",
		Columns: []Column{serialID, required("name"), text("capacity"), text("description")},
		Order:   byIDDesc,
	},
	TableHouseRules: {
		Name: TableHouseRules, Key: "id",
		Columns: []Column{serialID, {Name: "sort_order", Kind: KindInt}, required("rule_text")},
		Order:   []Order{{Column: "sort_order"}, {Column: "id"}},
	},
	TableGalleryImages: {
		Name: TableGalleryImages, Key: "id",
		Columns: []Column{
			serialID, createdAt,
			text("title"), text("category"), text("storage_path"), required("url"),
			{Name: "sort_order", Kind: KindInt},
		},
		Order: []Order{{Column: "sort_order"}, {Column: "id"}},
	},
	TableAdminUsers: {
		Name: TableAdminUsers, Key: "email",
		// password_hash is only present on self-hosted stores.
		Columns: []Column{required("email"), text("password_hash")},
		Order:   []Order{{Column: "email"}},
	},
}

// ContentTables are the editorial tables staff manage from the content screen.
var ContentTables = []Table{
	TableTestimonials, TableFAQs, TableAmenityGroups, TableEventSpaces, TableHouseRules,
}

func IsContentTable(t Table) bool {
	for _, c := range ContentTables {
		if c == t {
			return true
		}
	}
	return false
}

// LookupTable returns the schema of a known table.
func LookupTable(name Table) (TableSpec, error) {
	spec, ok := tables[name]
	if !ok {
		return TableSpec{}, fmt.Errorf("%w: unknown table %q", ErrBadRequest, name)
	}
	return spec, nil
}

// Tables lists every known table.
func Tables() []TableSpec {
	out := make([]TableSpec, 0, len(tables))
	for _, t := range tables {
		out = append(out, t)
	}
	return out
}
