package labflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Pipe-delimited instrument exchange. Segments are terminated by CR/LF, fields
// within a segment are separated by "|", sub-components within a field by "^".

const (
	hl7FieldSeparator     = "|"
	hl7ComponentSeparator = "^"
	hl7SegmentTerminator  = "\r\n"
	hl7TimestampLayout    = "20060102150405"
	hl7DateLayout         = "20060102"

	hl7SendingApplication = "LabFlow"
	hl7SendingFacility    = "LAB"
	hl7MessageType        = "ORU^R01"
	hl7VersionID          = "2.5.1"
)

var ErrNoMSHSegment = fmt.Errorf("message contains no MSH segment")

type ParsedPatient struct {
	ID          string
	LastName    string
	FirstName   string
	DateOfBirth *time.Time
	Sex         *Sex
}

type ParsedOrder struct {
	OrderNumber  string
	Barcode      string
	InstrumentID string
}

type ParsedObservation struct {
	Sequence       int
	ParameterCode  string
	Value          decimal.Decimal
	Unit           string
	ReferenceRange string
	AbnormalFlag   string
}

type ParsedExchange struct {
	MessageType      string
	MessageControlID string
	Timestamp        time.Time
	Patient          ParsedPatient
	Order            ParsedOrder
	Observations     []ParsedObservation
}

// ParseHL7 decodes a pipe-delimited exchange. Malformed numeric observation
// values decode to zero instead of failing the whole message; this lenient
// mode is deliberate and matches what the connected instruments send.
func ParseHL7(message string) (ParsedExchange, error) {
	var exchange ParsedExchange
	var mshSeen bool

	segments := strings.FieldsFunc(message, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	for _, segment := range segments {
		fields := strings.Split(segment, hl7FieldSeparator)
		if len(fields) == 0 || len(fields[0]) != 3 {
			continue
		}
		switch fields[0] {
		case "MSH":
			mshSeen = true
			exchange.MessageType = hl7Field(fields, 8)
			exchange.MessageControlID = hl7Field(fields, 9)
			if timestamp, err := time.Parse(hl7TimestampLayout, hl7Field(fields, 6)); err == nil {
				exchange.Timestamp = timestamp
			}
		case "PID":
			exchange.Patient.ID = hl7Field(fields, 3)
			nameComponents := strings.Split(hl7Field(fields, 5), hl7ComponentSeparator)
			exchange.Patient.LastName = nameComponents[0]
			if len(nameComponents) > 1 {
				exchange.Patient.FirstName = nameComponents[1]
			}
			if dateOfBirth, err := time.Parse(hl7DateLayout, hl7Field(fields, 7)); err == nil {
				exchange.Patient.DateOfBirth = &dateOfBirth
			}
			switch hl7Field(fields, 8) {
			case "M":
				sex := SexMale
				exchange.Patient.Sex = &sex
			case "F":
				sex := SexFemale
				exchange.Patient.Sex = &sex
			}
		case "OBR":
			exchange.Order.OrderNumber = hl7Field(fields, 2)
			exchange.Order.Barcode = hl7Field(fields, 3)
			exchange.Order.InstrumentID = hl7Field(fields, 4)
		case "OBX":
			observation := ParsedObservation{
				ParameterCode:  strings.Split(hl7Field(fields, 3), hl7ComponentSeparator)[0],
				Unit:           hl7Field(fields, 6),
				ReferenceRange: hl7Field(fields, 7),
				AbnormalFlag:   hl7Field(fields, 8),
			}
			observation.Sequence, _ = strconv.Atoi(hl7Field(fields, 1))
			value, err := decimal.NewFromString(hl7Field(fields, 5))
			if err != nil {
				value = decimal.Zero
			}
			observation.Value = value
			exchange.Observations = append(exchange.Observations, observation)
		}
	}

	if !mshSeen {
		return ParsedExchange{}, ErrNoMSHSegment
	}

	return exchange, nil
}

// GenerateHL7 is the inverse of ParseHL7: MSH/PID/OBR followed by one OBX per
// result in input order, using the same field layout.
func GenerateHL7(order TestOrder, patient Patient, results []TestResult, timestamp time.Time) string {
	var builder strings.Builder

	instrumentID := ""
	if order.InstrumentID != nil {
		instrumentID = *order.InstrumentID
	}

	builder.WriteString(strings.Join([]string{
		"MSH", `^~\&`, hl7SendingApplication, hl7SendingFacility, "LIS", "HOSPITAL",
		timestamp.UTC().Format(hl7TimestampLayout), "", hl7MessageType, order.ID, "P", hl7VersionID,
	}, hl7FieldSeparator))
	builder.WriteString(hl7SegmentTerminator)

	dateOfBirth := ""
	if patient.DateOfBirth != nil {
		dateOfBirth = patient.DateOfBirth.UTC().Format(hl7DateLayout)
	}
	builder.WriteString(strings.Join([]string{
		"PID", "1", "", patient.ID, "", patient.LastName + hl7ComponentSeparator + patient.FirstName,
		"", dateOfBirth, hl7SexCode(patient.Sex),
	}, hl7FieldSeparator))
	builder.WriteString(hl7SegmentTerminator)

	builder.WriteString(strings.Join([]string{
		"OBR", "1", order.OrderNumber, order.Barcode, instrumentID, "", "",
		timestamp.UTC().Format(hl7TimestampLayout),
	}, hl7FieldSeparator))
	builder.WriteString(hl7SegmentTerminator)

	for i, result := range results {
		abnormalFlag := "N"
		if result.IsFlagged {
			abnormalFlag = "A"
		}
		builder.WriteString(strings.Join([]string{
			"OBX", strconv.Itoa(i + 1), "NM", result.ParameterCode, "", result.Value.String(),
			result.Unit, result.ReferenceRange, abnormalFlag, "", "", "F",
		}, hl7FieldSeparator))
		builder.WriteString(hl7SegmentTerminator)
	}

	return builder.String()
}

func hl7Field(fields []string, index int) string {
	if index >= len(fields) {
		return ""
	}
	return fields[index]
}

func hl7SexCode(sex *Sex) string {
	if sex == nil {
		return ""
	}
	switch *sex {
	case SexMale:
		return "M"
	case SexFemale:
		return "F"
	}
	return ""
}
