package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/adapters/observability"
	"woodheaven_farms/internal/domain"
)

const dateLayout = "2006-01-02"

type StayInput struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Checkin  string `json:"checkin" validate:"required,datetime=2006-01-02"`
	Checkout string `json:"checkout" validate:"required,datetime=2006-01-02"`
	Guests   int    `json:"guests" validate:"required,min=1"`
	Message  string `json:"message"`
}

type EventInput struct {
	Name         string `json:"name" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	EventDate    string `json:"event_date" validate:"required,datetime=2006-01-02"`
	EventType    string `json:"event_type"`
	Guests       int    `json:"guests" validate:"required,min=1"`
	Requirements string `json:"requirements"`
}

// StayReceipt is what a guest gets back after submitting a stay enquiry.
type StayReceipt struct {
	Enquiry     domain.StayEnquiry `json:"enquiry"`
	WhatsAppURL string             `json:"whatsapp_url"`
}

type EventReceipt struct {
	Enquiry     domain.EventEnquiry `json:"enquiry"`
	WhatsAppURL string              `json:"whatsapp_url"`
}

type EnquiryService struct {
	records  domain.RecordStore
	site     *SiteService
	notifier domain.LeadNotifier
	validate *validator.Validate
}

// NewEnquiryService wires the lead flow. notifier may be nil.
func NewEnquiryService(r domain.RecordStore, site *SiteService, n domain.LeadNotifier) *EnquiryService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return &EnquiryService{records: r, site: site, notifier: n, validate: v}
}

func (s *EnquiryService) SubmitStay(ctx context.Context, in StayInput, source string) (StayReceipt, error) {
	in.Name, in.Phone, in.Message = strings.TrimSpace(in.Name), strings.TrimSpace(in.Phone), strings.TrimSpace(in.Message)
	if err := s.check(in); err != nil {
		return StayReceipt{}, err
	}
	checkin, _ := time.Parse(dateLayout, in.Checkin)
	checkout, _ := time.Parse(dateLayout, in.Checkout)
	if checkout.Before(checkin) {
		return StayReceipt{}, domain.Invalid("checkout", "must not be before checkin")
	}

	e := domain.StayEnquiry{
		Name: in.Name, Phone: in.Phone,
		Checkin: in.Checkin, Checkout: in.Checkout,
		Guests: in.Guests, Message: in.Message,
		Source: sourceOrDirect(source), Status: domain.StatusNew,
	}
	if err := s.insert(ctx, domain.TableStayEnquiries, e, &e); err != nil {
		return StayReceipt{}, err
	}
	observability.ObserveEnquiry(string(domain.LeadStays), e.Source)

	site := s.settings(ctx)
	if s.notifier != nil {
		if err := s.notifier.NotifyStay(ctx, site, e); err != nil {
			log.Warn().Err(err).Str("enquiry", string(e.ID)).Msg("stay notification failed")
		}
	}
	msg := fmt.Sprintf("Hi Wood Heaven Farms! I want to book a stay.\nName: %s\nDates: %s to %s\nGuests: %d",
		e.Name, e.Checkin, e.Checkout, e.Guests)
	return StayReceipt{Enquiry: e, WhatsAppURL: WhatsAppLink(site.WhatsApp(), msg)}, nil
}

func (s *EnquiryService) SubmitEvent(ctx context.Context, in EventInput, source string) (EventReceipt, error) {
	in.Name, in.Phone, in.Requirements = strings.TrimSpace(in.Name), strings.TrimSpace(in.Phone), strings.TrimSpace(in.Requirements)
	if err := s.check(in); err != nil {
		return EventReceipt{}, err
	}

	e := domain.EventEnquiry{
		Name: in.Name, Phone: in.Phone,
		EventDate: in.EventDate, EventType: domain.ParseEventType(strings.TrimSpace(in.EventType)),
		Guests: in.Guests, Requirements: in.Requirements,
		Source: sourceOrDirect(source), Status: domain.StatusNew,
	}
	if err := s.insert(ctx, domain.TableEventEnquiries, e, &e); err != nil {
		return EventReceipt{}, err
	}
	observability.ObserveEnquiry(string(domain.LeadEvents), e.Source)

	site := s.settings(ctx)
	if s.notifier != nil {
		if err := s.notifier.NotifyEvent(ctx, site, e); err != nil {
			log.Warn().Err(err).Str("enquiry", string(e.ID)).Msg("event notification failed")
		}
	}
	msg := fmt.Sprintf("Hi! Planning an event at Wood Heaven Farms.\nType: %s\nDate: %s\nGuests: %d",
		e.EventType, e.EventDate, e.Guests)
	return EventReceipt{Enquiry: e, WhatsAppURL: WhatsAppLink(site.WhatsApp(), msg)}, nil
}

// List returns the leads of one kind, newest first.
func (s *EnquiryService) List(ctx context.Context, kind domain.LeadKind) ([]domain.Record, error) {
	spec, err := domain.LookupTable(kind.Table())
	if err != nil {
		return nil, err
	}
	rows, err := s.records.Select(ctx, spec.Name, domain.Query{Order: spec.Order})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	if rows == nil {
		rows = []domain.Record{}
	}
	return rows, nil
}

func (s *EnquiryService) UpdateStatus(ctx context.Context, kind domain.LeadKind, id, status string) (domain.Record, error) {
	st, ok := domain.ParseLeadStatus(status)
	if !ok {
		return nil, domain.Invalid("status", "must be one of new, contacted, booked")
	}
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.records.Update(ctx, kind.Table(), []domain.Filter{domain.Eq("id", n)}, domain.Record{"status": string(st)})
	if err != nil {
		return nil, fmt.Errorf("update %s %d: %w", kind, n, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %d", domain.ErrNotFound, kind, n)
	}
	return rows[0], nil
}

func (s *EnquiryService) insert(ctx context.Context, table domain.Table, in, out any) error {
	rec, err := domain.ToRecord(in)
	if err != nil {
		return err
	}
	delete(rec, "id")
	delete(rec, "created_at")
	rows, err := s.records.Insert(ctx, table, []domain.Record{rec})
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	if len(rows) > 0 {
		return domain.FromRecord(rows[0], out)
	}
	return nil
}

// settings falls back to defaults so a settings outage never loses a lead.
func (s *EnquiryService) settings(ctx context.Context) domain.SiteSettings {
	if s.site == nil {
		return domain.SiteSettings{ID: domain.SettingsID}
	}
	st, err := s.site.Settings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("settings unavailable for enquiry")
		return domain.SiteSettings{ID: domain.SettingsID}
	}
	return st
}

func (s *EnquiryService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return domain.Invalid(fe.Field(), "is required")
	case "datetime":
		return domain.Invalid(fe.Field(), "must be a date (YYYY-MM-DD)")
	case "min":
		return domain.Invalid(fe.Field(), "must be at least "+fe.Param())
	}
	return domain.Invalid(fe.Field(), "is invalid")
}

// WhatsAppLink builds a wa.me deep link with a prefilled message.
func WhatsAppLink(number, message string) string {
	return "https://wa.me/" + number + "?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}

func sourceOrDirect(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return "direct"
}

// jsonName reports struct fields by their JSON name in validation errors.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
