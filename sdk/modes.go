package voxform

import (
	"google.golang.org/genai"

	"github.com/voxform/voxform/pkg/core"
	"github.com/voxform/voxform/pkg/core/types"
)

// Mode selects the active record schema and persona.
type Mode string

const (
	ModeIntake Mode = "intake"
	ModeSales  Mode = "sales"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeIntake, ModeSales:
		return Mode(s), nil
	default:
		return "", core.NewInvalidRequestError("unknown mode: " + s)
	}
}

// PatientRecordFields is the extraction surface for intake mode. Every
// parameter is an optional string so the model can fill fields piecemeal.
type PatientRecordFields struct {
	FullName          string `json:"fullName,omitempty" desc:"Patient's full name"`
	DateOfBirth       string `json:"dateOfBirth,omitempty" desc:"Patient's date of birth"`
	InsuranceProvider string `json:"insuranceProvider,omitempty" desc:"Name of the patient's insurance provider"`
	PolicyNumber      string `json:"policyNumber,omitempty" desc:"Insurance policy number"`
	Copay             string `json:"copay,omitempty" desc:"Copay amount, including currency symbol if stated"`
	ReasonForVisit    string `json:"reasonForVisit,omitempty" desc:"Reason for today's visit"`
}

// SalesRecordFields is the extraction surface for sales-visit mode.
type SalesRecordFields struct {
	PhysicianName    string `json:"physicianName,omitempty" desc:"Name of the physician visited"`
	ClinicName       string `json:"clinicName,omitempty" desc:"Name of the clinic or practice"`
	ProductDiscussed string `json:"productDiscussed,omitempty" desc:"Product presented during the visit"`
	SamplesLeft      string `json:"samplesLeft,omitempty" desc:"Quantity and kind of samples left behind"`
	FollowUpDate     string `json:"followUpDate,omitempty" desc:"Agreed follow-up date"`
	VisitNotes       string `json:"visitNotes,omitempty" desc:"Free-form notes about the visit"`
}

// ModeConfig is the immutable per-mode tuple used by both the chat and
// live paths: system instruction, tool schema, greeting, and the ordered
// field layout for the record panel.
type ModeConfig struct {
	Mode            Mode
	Instruction     string
	Greeting        string
	ToolName        string
	ToolDescription string
	Fields          []types.Field
	Schema          *genai.Schema
}

// NewRecord creates an empty record laid out for this mode.
func (m ModeConfig) NewRecord() *types.Record {
	return types.NewRecord(m.Fields)
}

const intakeInstruction = `You are a friendly medical office assistant helping a receptionist capture patient intake details.
As the receptionist dictates or types information about a patient, call update_patient_record with every field you can extract.
Only include fields that were actually mentioned. Keep spoken confirmations brief.`

const salesInstruction = `You are an assistant helping a pharmaceutical sales representative log visit details.
As the rep dictates or types information about a sales call, call update_sales_record with every field you can extract.
Only include fields that were actually mentioned. Keep spoken confirmations brief.`

// ConfigFor maps a mode to its configuration. Total over the two known
// modes; unknown modes fall back to intake.
func ConfigFor(mode Mode) ModeConfig {
	switch mode {
	case ModeSales:
		return ModeConfig{
			Mode:            ModeSales,
			Instruction:     salesInstruction,
			Greeting:        "Hi! Tell me about your visit and I'll log the details as you go.",
			ToolName:        "update_sales_record",
			ToolDescription: "Record one or more extracted sales-visit fields. Omit fields that were not mentioned.",
			Fields: []types.Field{
				{Name: "physicianName", Label: "Physician Name"},
				{Name: "clinicName", Label: "Clinic Name"},
				{Name: "productDiscussed", Label: "Product Discussed"},
				{Name: "samplesLeft", Label: "Samples Left"},
				{Name: "followUpDate", Label: "Follow-up Date"},
				{Name: "visitNotes", Label: "Visit Notes"},
			},
			Schema: SchemaFromStruct[SalesRecordFields](),
		}
	default:
		return ModeConfig{
			Mode:            ModeIntake,
			Instruction:     intakeInstruction,
			Greeting:        "Hello! Tell me about the patient and I'll fill in the intake form as you go.",
			ToolName:        "update_patient_record",
			ToolDescription: "Record one or more extracted patient intake fields. Omit fields that were not mentioned.",
			Fields: []types.Field{
				{Name: "fullName", Label: "Full Name"},
				{Name: "dateOfBirth", Label: "Date of Birth"},
				{Name: "insuranceProvider", Label: "Insurance Provider"},
				{Name: "policyNumber", Label: "Policy Number"},
				{Name: "copay", Label: "Copay"},
				{Name: "reasonForVisit", Label: "Reason for Visit"},
			},
			Schema: SchemaFromStruct[PatientRecordFields](),
		}
	}
}
