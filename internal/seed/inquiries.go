package seed

import (
	"context"
	"fmt"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/store"
)

type inquiryDef struct {
	name        string
	email       string
	serviceType string
	destination string
	status      string
}

var demoInquiries = []inquiryDef{
	{name: "Priya Nair", email: "priya@example.com", serviceType: "Study", destination: "Canada", status: domain.StatusNew},
	{name: "Tomás Silva", email: "tomas@example.com", serviceType: "Work", destination: "Germany", status: domain.StatusUnderReview},
	{name: "Mei Chen", email: "mei@example.com", serviceType: "Visit", destination: "Australia", status: domain.StatusRejected},
}

// Inquiries inserts local demo inquiries if none exist yet. They are Local
// so nothing is pushed until one is published.
func Inquiries(ctx context.Context, records store.RecordStore) error {
	count, err := records.Count(ctx, domain.EntityInquiry)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, d := range demoInquiries {
		_, err := records.Create(ctx, &domain.Record{
			EntityType: domain.EntityInquiry,
			Origin:     domain.OriginLocal,
			Status:     d.status,
			Fields: map[string]string{
				domain.FieldApplicantName:      d.name,
				domain.FieldContactEmail:       d.email,
				domain.FieldServiceType:        d.serviceType,
				domain.FieldDestinationCountry: d.destination,
				domain.FieldInquiryDate:        "2026-01-01",
			},
		})
		if err != nil {
			return fmt.Errorf("insert inquiry %s: %w", d.email, err)
		}
	}
	return nil
}
