package labflow

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHL7(t *testing.T) {
	message := strings.Join([]string{
		`MSH|^~\&|Analyzer|LAB|LIS|HOSPITAL|20250312101530||ORU^R01|MSG0001|P|2.5.1`,
		`PID|1||64f1a2b3c4d5e6f708192a3b||Smith^Anna||19840522|F`,
		`OBR|1|ORD-20250312-0af31c|BC-7K2M9QX4A|5f1a2b3c4d5e6f708192a3bc|||20250312101530`,
		`OBX|1|NM|WBC^Leukocytes||6.8|10*9/L|4.5 - 11.0|N||F`,
		`OBX|2|NM|HGB||13.2|g/dL|12.0 - 16.0|N||F`,
	}, "\r\n") + "\r\n"

	exchange, err := ParseHL7(message)
	require.NoError(t, err)

	assert.Equal(t, "ORU^R01", exchange.MessageType)
	assert.Equal(t, "MSG0001", exchange.MessageControlID)
	assert.Equal(t, time.Date(2025, 3, 12, 10, 15, 30, 0, time.UTC), exchange.Timestamp)

	assert.Equal(t, "64f1a2b3c4d5e6f708192a3b", exchange.Patient.ID)
	assert.Equal(t, "Smith", exchange.Patient.LastName)
	assert.Equal(t, "Anna", exchange.Patient.FirstName)
	require.NotNil(t, exchange.Patient.Sex)
	assert.Equal(t, SexFemale, *exchange.Patient.Sex)
	require.NotNil(t, exchange.Patient.DateOfBirth)
	assert.Equal(t, time.Date(1984, 5, 22, 0, 0, 0, 0, time.UTC), *exchange.Patient.DateOfBirth)

	assert.Equal(t, "ORD-20250312-0af31c", exchange.Order.OrderNumber)
	assert.Equal(t, "BC-7K2M9QX4A", exchange.Order.Barcode)
	assert.Equal(t, "5f1a2b3c4d5e6f708192a3bc", exchange.Order.InstrumentID)

	require.Len(t, exchange.Observations, 2)
	assert.Equal(t, 1, exchange.Observations[0].Sequence)
	assert.Equal(t, "WBC", exchange.Observations[0].ParameterCode)
	assert.True(t, decimal.RequireFromString("6.8").Equal(exchange.Observations[0].Value))
	assert.Equal(t, "10*9/L", exchange.Observations[0].Unit)
	assert.Equal(t, "4.5 - 11.0", exchange.Observations[0].ReferenceRange)
	assert.Equal(t, "N", exchange.Observations[0].AbnormalFlag)
	assert.Equal(t, "HGB", exchange.Observations[1].ParameterCode)
}

func TestParseHL7MalformedNumericValueDecodesToZero(t *testing.T) {
	message := strings.Join([]string{
		`MSH|^~\&|Analyzer|LAB|LIS|HOSPITAL|20250312101530||ORU^R01|MSG0002|P|2.5.1`,
		`OBX|1|NM|GLU||not-a-number|mg/dL|70 - 110|N||F`,
	}, "\r\n")

	exchange, err := ParseHL7(message)
	require.NoError(t, err)
	require.Len(t, exchange.Observations, 1)
	assert.True(t, exchange.Observations[0].Value.IsZero())
}

func TestParseHL7WithoutMSHSegment(t *testing.T) {
	_, err := ParseHL7("OBX|1|NM|GLU||5.5|mmol/L|||F\r\n")
	assert.ErrorIs(t, err, ErrNoMSHSegment)
}

func TestParseHL7SkipsUnknownAndMalformedSegments(t *testing.T) {
	message := strings.Join([]string{
		`MSH|^~\&|Analyzer|LAB|LIS|HOSPITAL|20250312101530||ORU^R01|MSG0003|P|2.5.1`,
		`ZZZ|some|custom|segment`,
		`garbage without separators`,
		`OBX|1|NM|NA||140|mmol/L|135 - 145|N||F`,
	}, "\r\n")

	exchange, err := ParseHL7(message)
	require.NoError(t, err)
	require.Len(t, exchange.Observations, 1)
	assert.Equal(t, "NA", exchange.Observations[0].ParameterCode)
}

func TestGenerateParseRoundTrip(t *testing.T) {
	dateOfBirth := time.Date(1959, 11, 2, 0, 0, 0, 0, time.UTC)
	sex := SexMale
	instrumentID := "5f1a2b3c4d5e6f708192a3bc"
	patient := Patient{
		ID:          "64f1a2b3c4d5e6f708192a3b",
		FirstName:   "Karl",
		LastName:    "Weber",
		Sex:         &sex,
		DateOfBirth: &dateOfBirth,
	}
	order := TestOrder{
		ID:           "0123456789abcdef01234567",
		OrderNumber:  "ORD-20250312-0af31c",
		Barcode:      "BC-7K2M9QX4A",
		PatientID:    patient.ID,
		InstrumentID: &instrumentID,
		Status:       OrderStatusRunning,
	}
	results := []TestResult{
		{
			ParameterCode:  "WBC",
			Value:          decimal.RequireFromString("6.85"),
			Unit:           "10*9/L",
			ReferenceRange: "4.5 - 11.0",
			IsFlagged:      false,
		},
		{
			ParameterCode:  "CRP",
			Value:          decimal.RequireFromString("120.4"),
			Unit:           "mg/L",
			ReferenceRange: "0 - 5",
			IsFlagged:      true,
		},
		{
			ParameterCode: "TNT",
			Value:         decimal.RequireFromString("0.00013"),
			Unit:          "ng/mL",
		},
	}

	timestamp := time.Date(2025, 3, 12, 10, 15, 30, 0, time.UTC)
	message := GenerateHL7(order, patient, results, timestamp)

	exchange, err := ParseHL7(message)
	require.NoError(t, err)

	assert.Equal(t, "ORU^R01", exchange.MessageType)
	assert.Equal(t, order.ID, exchange.MessageControlID)
	assert.Equal(t, timestamp, exchange.Timestamp)
	assert.Equal(t, patient.ID, exchange.Patient.ID)
	assert.Equal(t, "Weber", exchange.Patient.LastName)
	assert.Equal(t, "Karl", exchange.Patient.FirstName)
	assert.Equal(t, order.OrderNumber, exchange.Order.OrderNumber)
	assert.Equal(t, order.Barcode, exchange.Order.Barcode)
	assert.Equal(t, instrumentID, exchange.Order.InstrumentID)

	require.Len(t, exchange.Observations, len(results))
	for i, result := range results {
		assert.Equal(t, i+1, exchange.Observations[i].Sequence)
		assert.Equal(t, result.ParameterCode, exchange.Observations[i].ParameterCode)
		assert.True(t, result.Value.Equal(exchange.Observations[i].Value),
			"value of %s must round-trip losslessly", result.ParameterCode)
		assert.Equal(t, result.Unit, exchange.Observations[i].Unit)
	}
	assert.Equal(t, "N", exchange.Observations[0].AbnormalFlag)
	assert.Equal(t, "A", exchange.Observations[1].AbnormalFlag)
}
