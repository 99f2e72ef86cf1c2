//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carepoint/clinic/internal/domain/antenatal"
	"github.com/carepoint/clinic/pkg/cdss/risk"
	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

func newANCService() *antenatal.Service {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	return antenatal.NewService(
		antenatal.NewEnrollmentRepoPG(globalDB.Pool),
		antenatal.NewVisitRepoPG(globalDB.Pool),
		antenatal.NewPatientDirectoryPG(globalDB.Pool),
	).WithClock(func() time.Time { return now })
}

func TestAntenatalRepos(t *testing.T) {
	ctx := context.Background()
	tenantID := uniqueTenantID("anc")
	createTenantSchema(t, ctx, tenantID)
	defer dropTenantSchema(t, ctx, tenantID)

	dob := day(1988, 3, 10)
	patientID := createTestPatient(t, ctx, tenantID, "Grace", "Eze", &dob)
	svc := newANCService()

	enrollment := &antenatal.Enrollment{
		PatientID:  patientID,
		LMP:        day(2025, 1, 1),
		Gravida:    6,
		Para:       4,
		BloodGroup: strp("O+"),
	}

	t.Run("Enroll", func(t *testing.T) {
		err := withTenantConn(ctx, tenantID, func(ctx context.Context) error {
			return svc.Enroll(ctx, enrollment)
		})
		if err != nil {
			t.Fatalf("enroll: %v", err)
		}
		if enrollment.ID == uuid.Nil {
			t.Fatal("expected an id")
		}
		if !enrollment.EDD.Equal(day(2025, 10, 8)) {
			t.Errorf("edd = %s, want 2025-10-08", enrollment.EDD.Format("2006-01-02"))
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		var got *antenatal.Enrollment
		err := withTenantConn(ctx, tenantID, func(ctx context.Context) error {
			var err error
			got, err = svc.GetEnrollment(ctx, enrollment.ID)
			return err
		})
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.LMP.Format("2006-01-02") != "2025-01-01" || got.EDD.Format("2006-01-02") != "2025-10-08" {
			t.Errorf("dates = %s / %s", got.LMP.Format("2006-01-02"), got.EDD.Format("2006-01-02"))
		}
		if got.Status != antenatal.StatusActive || got.BloodGroup == nil || *got.BloodGroup != "O+" {
			t.Errorf("enrollment = %+v", got)
		}
	})

	t.Run("Visits", func(t *testing.T) {
		visits := []*antenatal.Visit{
			{VisitDate: day(2025, 4, 1), Systolic: iptr(150), Diastolic: iptr(95), FetalHeartRate: iptr(140)},
			{VisitDate: day(2025, 5, 20), Systolic: iptr(146), Diastolic: iptr(92), FundalHeight: f64(20), FetalHeartRate: iptr(100)},
		}
		err := withTenantConn(ctx, tenantID, func(ctx context.Context) error {
			for _, v := range visits {
				v.EnrollmentID = enrollment.ID
				if _, err := svc.RecordVisit(ctx, v); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("record visits: %v", err)
		}
		if visits[0].GestationalWeeks != 12 || visits[0].GestationalDays != 6 {
			t.Errorf("ga = %dw %dd, want 12w 6d", visits[0].GestationalWeeks, visits[0].GestationalDays)
		}
	})

	t.Run("Summary", func(t *testing.T) {
		var sum *antenatal.Summary
		err := withTenantConn(ctx, tenantID, func(ctx context.Context) error {
			var err error
			sum, err = svc.Summary(ctx, enrollment.ID, time.Time{})
			return err
		})
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		want := []string{risk.AdvancedMaternalAge, risk.GrandMultipara, risk.ChronicHypertension}
		got := risk.Labels(sum.RiskFactors)
		if len(got) != len(want) {
			t.Fatalf("risk factors = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("factor[%d] = %q, want %q", i, got[i], want[i])
			}
		}
		if sum.VisitCount != 2 || sum.LatestVisit == nil {
			t.Fatalf("visit count = %d, latest = %v", sum.VisitCount, sum.LatestVisit)
		}
		if fhr := sum.LatestVisit.Assessment.FetalHeartRate; fhr == nil || fhr.Level != vitals.Critical {
			t.Errorf("latest fhr status = %+v, want critical", fhr)
		}
		if sum.Dating.DaysToDelivery != 115 {
			t.Errorf("days to delivery = %d, want 115", sum.Dating.DaysToDelivery)
		}
	})

	t.Run("ActiveEnrollment", func(t *testing.T) {
		var got *antenatal.Enrollment
		err := withTenantConn(ctx, tenantID, func(ctx context.Context) error {
			var err error
			got, err = svc.ActiveEnrollment(ctx, patientID)
			return err
		})
		if err != nil {
			t.Fatalf("active: %v", err)
		}
		if got.ID != enrollment.ID {
			t.Errorf("active enrollment = %s, want %s", got.ID, enrollment.ID)
		}
	})

	t.Run("LMPChangeRedatesVisits", func(t *testing.T) {
		var latest *antenatal.AssessedVisit
		err := withTenantConn(ctx, tenantID, func(ctx context.Context) error {
			upd := &antenatal.Enrollment{ID: enrollment.ID, LMP: day(2025, 2, 12), Gravida: 6, Para: 4}
			if err := svc.UpdateEnrollment(ctx, upd); err != nil {
				return err
			}
			items, _, err := svc.ListVisits(ctx, enrollment.ID, 1, 0)
			if err != nil {
				return err
			}
			latest = items[0]
			return nil
		})
		if err != nil {
			t.Fatalf("update lmp: %v", err)
		}
		if latest.GestationalWeeks != 13 || latest.GestationalDays != 6 {
			t.Errorf("ga = %dw %dd, want 13w 6d", latest.GestationalWeeks, latest.GestationalDays)
		}
		if fh := latest.Assessment.FundalHeight; fh == nil || fh.Label != "Review" {
			t.Errorf("fundal height status = %+v, want Review", fh)
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		err := withTenantConn(ctx, tenantID, func(ctx context.Context) error {
			if err := svc.DeleteEnrollment(ctx, enrollment.ID); err != nil {
				return err
			}
			_, _, err := svc.ListVisits(ctx, enrollment.ID, 10, 0)
			return err
		})
		if !errors.Is(err, antenatal.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestPatientDirectory_UnknownPatient(t *testing.T) {
	ctx := context.Background()
	tenantID := uniqueTenantID("dir")
	createTenantSchema(t, ctx, tenantID)
	defer dropTenantSchema(t, ctx, tenantID)

	dir := antenatal.NewPatientDirectoryPG(globalDB.Pool)
	err := withTenantConn(ctx, tenantID, func(ctx context.Context) error {
		dob, err := dir.BirthDate(ctx, uuid.New())
		if err != nil {
			return err
		}
		if dob != nil {
			t.Errorf("dob = %v, want nil for unknown patient", dob)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("birth date: %v", err)
	}
}
