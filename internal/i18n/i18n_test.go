package i18n

import (
	"context"
	"strings"
	"testing"
)

func TestTranslations(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	en := WithLocalizer(context.Background(), NewLocalizer("en"))
	if got := T(en, "AlreadyBooked"); got != "The candidate is already booked" {
		t.Errorf("unexpected en message: %q", got)
	}

	ru := WithLocalizer(context.Background(), NewLocalizer("ru"))
	if got := T(ru, "AlreadyBooked"); got != "Кандидат уже отобран" {
		t.Errorf("unexpected ru message: %q", got)
	}

	// Template data lands in the message.
	got := Td(en, "BookedByOther", map[string]any{"Booker": "Ivanov I.I."})
	if !strings.Contains(got, "Ivanov I.I.") {
		t.Errorf("expected booker name in %q", got)
	}

	// Unknown IDs fall back to the ID itself.
	if got := T(en, "NoSuchMessage"); got != "NoSuchMessage" {
		t.Errorf("expected fallback to ID, got %q", got)
	}

	// Without a localizer in context the default language applies.
	if got := T(context.Background(), "BookingNotFound"); got != "Booking not found" {
		t.Errorf("unexpected default-language message: %q", got)
	}
}
