package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int) *int { return &v }

var ref = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func dobForAge(years int) *time.Time {
	d := ref.AddDate(-years, 0, -1)
	return &d
}

func TestHighRiskFactors_AllInOrder(t *testing.T) {
	visits := []BPVisit{
		{Systolic: ptr(150), Diastolic: ptr(85)},
		{Systolic: ptr(145), Diastolic: ptr(80)},
	}
	got := HighRiskFactors(dobForAge(40), 6, visits, ref)
	assert.Equal(t, []string{
		"Advanced Maternal Age (>35)",
		"Grand Multipara (G>5)",
		"Chronic Hypertension",
	}, Labels(got))

	again := HighRiskFactors(dobForAge(40), 6, visits, ref)
	assert.Equal(t, got, again)
}

func TestHighRiskFactors_EmptyNotNil(t *testing.T) {
	got := HighRiskFactors(dobForAge(28), 2, nil, ref)
	require.NotNil(t, got)
	assert.Empty(t, got)

	got = HighRiskFactors(nil, 1, nil, ref)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHighRiskFactors_AgeBands(t *testing.T) {
	assert.Equal(t, []string{AdolescentPregnancy}, Labels(HighRiskFactors(dobForAge(17), 1, nil, ref)))
	assert.Empty(t, HighRiskFactors(dobForAge(18), 1, nil, ref))
	assert.Empty(t, HighRiskFactors(dobForAge(35), 1, nil, ref))
	assert.Equal(t, []string{AdvancedMaternalAge}, Labels(HighRiskFactors(dobForAge(36), 1, nil, ref)))
}

func TestHighRiskFactors_AgeUsesFullYears(t *testing.T) {
	// turns 36 tomorrow
	dob := ref.AddDate(-36, 0, 1)
	assert.Empty(t, HighRiskFactors(&dob, 1, nil, ref))
	assert.Equal(t, 35, AgeInYears(dob, ref))

	birthday := ref.AddDate(-36, 0, 0)
	assert.Equal(t, 36, AgeInYears(birthday, ref))
}

func TestHighRiskFactors_Gravida(t *testing.T) {
	assert.Empty(t, HighRiskFactors(nil, 5, nil, ref))
	assert.Equal(t, []string{GrandMultipara}, Labels(HighRiskFactors(nil, 6, nil, ref)))
}

func TestHighRiskFactors_ChronicHypertension(t *testing.T) {
	tests := []struct {
		name   string
		visits []BPVisit
		want   bool
	}{
		{"single high visit", []BPVisit{{ptr(150), ptr(95)}}, false},
		{"two high visits", []BPVisit{{ptr(150), ptr(80)}, {ptr(120), ptr(95)}}, true},
		{"one high of two", []BPVisit{{ptr(150), ptr(80)}, {ptr(120), ptr(80)}}, false},
		{"incomplete readings ignored", []BPVisit{{ptr(150), nil}, {ptr(160), nil}, {ptr(120), ptr(80)}}, false},
		{"boundary values are not high", []BPVisit{{ptr(140), ptr(90)}, {ptr(140), ptr(90)}}, false},
		{"two of three", []BPVisit{{ptr(150), ptr(80)}, {nil, ptr(100)}, {ptr(130), ptr(91)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HighRiskFactors(nil, 1, tt.visits, ref)
			if tt.want {
				assert.Equal(t, []string{ChronicHypertension}, Labels(got))
			} else {
				assert.Empty(t, got)
			}
		})
	}
}
