package domain

// Wire field names used in FlyOut payloads.
const (
	WireInquiryID          = "inquiry_id"
	WireRemoteID           = "remote_id"
	WireApplicantName      = "applicant_name"
	WireEmail              = "email"
	WirePhone              = "phone"
	WireServiceType        = "service_type"
	WireDestinationCountry = "destination_country"
	WireSourceCountry      = "source_country"
	WireNotes              = "notes"
	WireStatus             = "status"
	WireReason             = "reason"
	WireCreatedAt          = "created_at"
	WireUpdatedAt          = "updated_at"
)

// FieldMapping pairs a FlyOut wire field with a local record field.
type FieldMapping struct {
	Wire  string
	Local string
}

// SyncedFields lists the plain fields copied in both directions. Notes are
// handled separately because inbound notes are appended, not replaced.
var SyncedFields = []FieldMapping{
	{Wire: WireApplicantName, Local: FieldApplicantName},
	{Wire: WireEmail, Local: FieldContactEmail},
	{Wire: WirePhone, Local: FieldContactPhone},
	{Wire: WireServiceType, Local: FieldServiceType},
	{Wire: WireDestinationCountry, Local: FieldDestinationCountry},
	{Wire: WireSourceCountry, Local: FieldSourceCountry},
}

// CreateRequiredFields must be present in an inbound payload that creates a
// new record.
var CreateRequiredFields = []string{WireInquiryID, WireApplicantName, WireEmail, WireServiceType}

// StatusRequiredFields must be present in an inbound status update.
var StatusRequiredFields = []string{WireInquiryID, WireStatus}
